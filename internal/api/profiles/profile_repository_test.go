package profiles

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/gigs-profile-service/internal/api/merge"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

var draftCols = []string{"data", "superseded"}

var profileCols = []string{"data", "status", "is_draft", "completion_percentage", "created_at", "updated_at"}

func newMockProfileRepo(t *testing.T) (*PostgresProfileRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresProfileRepo(mockPool, slog.Default()), mockPool
}

func promote(p *types.Profile, draft types.Document) error {
	if draft != nil {
		p.Data = merge.Apply(p.Data, draft)
	}
	p.IsDraft = false
	p.Status = types.ProfileStatusPending
	p.CompletionPercentage = 100
	return nil
}

func TestPostgresProfileRepo_Finalize(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	finalized := created.Add(time.Hour)

	t.Run("merges the locked draft into the existing profile", func(t *testing.T) {
		repo, mockPool := newMockProfileRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(`SELECT data, superseded_at IS NOT NULL FROM profile_drafts WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).AddRow([]byte(`{"pan":"ABCDE1234F"}`), false))
		mockPool.ExpectQuery(`FROM profiles WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(profileCols).
				AddRow([]byte(`{"name":"Asha"}`), "draft", true, 20, created, created))
		mockPool.ExpectQuery(`UPDATE profiles`).
			WithArgs(userID, pgxmock.AnyArg(), "pending", false, 100).
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(finalized))
		mockPool.ExpectExec(`UPDATE profile_drafts SET superseded_at = NOW\(\)`).WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		p, err := repo.Finalize(ctx, userID, promote)
		require.NoError(t, err)
		assert.Equal(t, types.Document{"name": "Asha", "pan": "ABCDE1234F"}, p.Data)
		assert.Equal(t, finalized, p.UpdatedAt)
		assert.Equal(t, created, p.CreatedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("creates the profile from a draft alone", func(t *testing.T) {
		repo, mockPool := newMockProfileRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(`SELECT data FROM profile_drafts`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).AddRow([]byte(`{"name":"Asha"}`), false))
		mockPool.ExpectQuery(`FROM profiles WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectQuery(`INSERT INTO profiles`).
			WithArgs(userID, pgxmock.AnyArg(), "pending", false, 100).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(finalized, finalized))
		mockPool.ExpectExec(`UPDATE profile_drafts SET superseded_at`).WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		p, err := repo.Finalize(ctx, userID, promote)
		require.NoError(t, err)
		assert.Equal(t, finalized, p.CreatedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("neither draft nor profile", func(t *testing.T) {
		repo, mockPool := newMockProfileRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(`SELECT data FROM profile_drafts`).WithArgs(userID).WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectQuery(`FROM profiles WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectRollback()

		_, err := repo.Finalize(ctx, userID, promote)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("superseded draft is not merged again", func(t *testing.T) {
		repo, mockPool := newMockProfileRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(`SELECT data, superseded_at IS NOT NULL FROM profile_drafts`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).AddRow([]byte(`{"mobile":"9876543210"}`), true))
		mockPool.ExpectQuery(`FROM profiles WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(profileCols).
				AddRow([]byte(`{"mobile":"9999999999"}`), "pending", false, 100, created, created))
		mockPool.ExpectQuery(`UPDATE profiles`).
			WithArgs(userID, pgxmock.AnyArg(), "pending", false, 100).
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(finalized))
		mockPool.ExpectCommit()

		var seen types.Document
		p, err := repo.Finalize(ctx, userID, func(p *types.Profile, draft types.Document) error {
			seen = draft
			return promote(p, draft)
		})
		require.NoError(t, err)
		assert.Nil(t, seen)
		assert.Equal(t, "9999999999", p.Data.String("mobile"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("validation failure writes nothing", func(t *testing.T) {
		repo, mockPool := newMockProfileRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(`SELECT data FROM profile_drafts`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).AddRow([]byte(`{}`), false))
		mockPool.ExpectQuery(`FROM profiles WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(profileCols).AddRow([]byte(`{}`), "draft", true, 0, created, created))
		mockPool.ExpectRollback()

		_, err := repo.Finalize(ctx, userID, func(*types.Profile, types.Document) error {
			return &types.ValidationError{Fields: []types.FieldError{{Field: "name", Reason: "required"}}}
		})
		_, ok := types.AsValidationError(err)
		assert.True(t, ok)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresProfileRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now()

	setEmail := func(p *types.Profile) (bool, error) {
		p.Data = merge.Apply(p.Data, types.Document{"email": "taken@example.com"})
		return true, nil
	}

	t.Run("duplicate email rolls back", func(t *testing.T) {
		repo, mockPool := newMockProfileRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO profiles \(user_id\) VALUES \(\$1\) ON CONFLICT`).WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mockPool.ExpectQuery(`FROM profiles WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(profileCols).AddRow([]byte(`{"name":"Asha"}`), "draft", true, 20, now, now))
		mockPool.ExpectQuery(`UPDATE profiles`).WithArgs(userID, pgxmock.AnyArg(), "draft", true, 20).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mockPool.ExpectRollback()

		_, err := repo.Upsert(ctx, userID, setEmail)
		assert.ErrorIs(t, err, types.ErrDuplicateKey)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("unchanged profile is not written", func(t *testing.T) {
		repo, mockPool := newMockProfileRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO profiles`).WithArgs(userID).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectQuery(`FROM profiles WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(profileCols).AddRow([]byte(`{}`), "draft", true, 0, now, now))
		mockPool.ExpectCommit()

		p, err := repo.Upsert(ctx, userID, func(*types.Profile) (bool, error) { return false, nil })
		require.NoError(t, err)
		assert.Equal(t, types.ProfileStatusDraft, p.Status)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresProfileRepo_Update(t *testing.T) {
	repo, mockPool := newMockProfileRepo(t)
	userID := uuid.New()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`FROM profiles WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()

	_, err := repo.Update(context.Background(), userID, func(*types.Profile) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresProfileRepo_List(t *testing.T) {
	repo, mockPool := newMockProfileRepo(t)
	pending := types.ProfileStatusPending
	now := time.Now()
	id := uuid.New()

	mockPool.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles WHERE \(data->>'name' ILIKE \$1 OR email ILIKE \$1 OR data->>'mobile' ILIKE \$1\) AND status = \$2`).
		WithArgs("%asha%", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(21))
	mockPool.ExpectQuery(`ORDER BY created_at DESC\s+LIMIT \$3 OFFSET \$4`).
		WithArgs("%asha%", "pending", 10, 10).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "name", "email", "mobile", "status", "is_draft", "completion_percentage", "created_at", "updated_at"}).
			AddRow(id, "Asha", "asha@example.com", "9876543210", "pending", false, 100, now, now))

	page, err := repo.List(context.Background(), types.ListProfilesParams{Page: 2, Limit: 10, Search: " asha ", Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, 21, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Profiles, 1)
	assert.Equal(t, "Asha", page.Profiles[0].Name)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresProfileRepo_Count(t *testing.T) {
	repo, mockPool := newMockProfileRepo(t)
	isDraft := true

	mockPool.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles WHERE is_draft = \$1`).WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mockPool.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles`).
		WillReturnError(errors.New("timeout"))

	n, err := repo.Count(context.Background(), ProfileFilter{IsDraft: &isDraft})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = repo.Count(context.Background(), ProfileFilter{})
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
