package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/gigs-profile-service/internal/api/merge"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

var (
	draftCols     = []string{"data", "updated_at", "superseded_at"}
	notSuperseded *time.Time
)

func newMockRepo(t *testing.T) (*PostgresDraftRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresDraftRepo(mockPool, slog.Default()), mockPool
}

func mergeInto(incoming types.Document) MutateFunc {
	return func(current types.Document) (types.Document, bool, error) {
		if !merge.Changed(current, incoming) {
			return current, false, nil
		}
		return merge.Apply(current, incoming), true, nil
	}
}

func TestPostgresDraftRepo_Update(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	stored := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := stored.Add(time.Minute)

	t.Run("merges under row lock and commits", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO profile_drafts`).WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mockPool.ExpectQuery(`SELECT data, updated_at, superseded_at FROM profile_drafts WHERE user_id = \$1 FOR UPDATE`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).
				AddRow([]byte(`{"name":"A","address":{"city":"X"}}`), stored, notSuperseded))
		mockPool.ExpectQuery(`UPDATE profile_drafts SET data`).
			WithArgs(userID, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(updated))
		mockPool.ExpectCommit()

		draft, err := repo.Update(ctx, userID, mergeInto(types.Document{"address": map[string]any{"pincode": "411001"}}))
		require.NoError(t, err)
		assert.Equal(t, updated, draft.UpdatedAt)
		assert.Equal(t, types.Document{
			"name":    "A",
			"address": map[string]any{"city": "X", "pincode": "411001"},
		}, draft.Data)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("skips the write when nothing changes", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO profile_drafts`).WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mockPool.ExpectQuery(`SELECT data, updated_at, superseded_at FROM profile_drafts`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).AddRow([]byte(`{"name":"A"}`), stored, notSuperseded))
		mockPool.ExpectCommit()

		draft, err := repo.Update(ctx, userID, mergeInto(types.Document{}))
		require.NoError(t, err)
		assert.Equal(t, stored, draft.UpdatedAt)
		assert.Equal(t, types.Document{"name": "A"}, draft.Data)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("superseded draft restarts from the incoming fields", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		finalizedAt := stored.Add(-time.Hour)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO profile_drafts`).WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mockPool.ExpectQuery(`SELECT data, updated_at, superseded_at FROM profile_drafts`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).
				AddRow([]byte(`{"name":"A","mobile":"9876543210"}`), stored, &finalizedAt))
		mockPool.ExpectQuery(`UPDATE profile_drafts SET data = \$2, superseded_at = NULL`).
			WithArgs(userID, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(updated))
		mockPool.ExpectCommit()

		draft, err := repo.Update(ctx, userID, mergeInto(types.Document{"jobRole": "Driver"}))
		require.NoError(t, err)
		assert.Equal(t, types.Document{"jobRole": "Driver"}, draft.Data)
		assert.Nil(t, draft.SupersededAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolls back when the update fails", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO profile_drafts`).WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectQuery(`SELECT data, updated_at, superseded_at FROM profile_drafts`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).AddRow([]byte(`{}`), stored, notSuperseded))
		mockPool.ExpectQuery(`UPDATE profile_drafts SET data`).WithArgs(userID, pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))
		mockPool.ExpectRollback()

		_, err := repo.Update(ctx, userID, mergeInto(types.Document{"name": "A"}))
		assert.ErrorIs(t, err, types.ErrPersistence)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("begin failure is a persistence error", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectBegin().WillReturnError(errors.New("pool closed"))

		_, err := repo.Update(ctx, userID, mergeInto(types.Document{"name": "A"}))
		assert.ErrorIs(t, err, types.ErrPersistence)
	})
}

func TestPostgresDraftRepo_Get(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("not found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`SELECT data, updated_at, superseded_at FROM profile_drafts`).WithArgs(userID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(ctx, userID)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		data, _ := json.Marshal(map[string]any{"mobile": "9876543210"})
		mockPool.ExpectQuery(`SELECT data, updated_at, superseded_at FROM profile_drafts`).WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(draftCols).AddRow(data, time.Now(), notSuperseded))

		draft, err := repo.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "9876543210", draft.Data.String("mobile"))
	})
}
