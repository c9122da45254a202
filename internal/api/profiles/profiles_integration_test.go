//go:build integration

package profiles_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	database "github.com/FACorreiaa/gigs-profile-service/app/db"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/admin"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/auth"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/drafts"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/profiles"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("gigs"),
		postgres.WithUsername("gigs"),
		postgres.WithPassword("gigs"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.Default()
	require.NoError(t, database.RunMigrations(url, logger))

	pool, err := database.Init(&database.DatabaseConfig{ConnectionURL: url, MaxConns: 30}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, 'x')`,
		id, id.String()+"@example.com")
	require.NoError(t, err)
	return id
}

func TestProfileLifecycle_Postgres(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	logger := slog.Default()

	draftService := drafts.NewDraftService(drafts.NewPostgresDraftRepo(pool, logger), logger)
	profileService := profiles.NewProfileService(profiles.NewPostgresProfileRepo(pool, logger), nil, logger)

	t.Run("concurrent draft saves lose nothing", func(t *testing.T) {
		userID := createUser(t, pool)

		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := draftService.SaveDraft(ctx, userID, map[string]any{fmt.Sprintf("extra%d", i): i})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		draft, err := draftService.LoadDraft(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, draft.Data, 25)
	})

	t.Run("finalize merges the draft and lists missing fields", func(t *testing.T) {
		userID := createUser(t, pool)

		_, err := draftService.SaveDraft(ctx, userID, map[string]any{"name": "Asha", "mobile": "9876543210"})
		require.NoError(t, err)

		_, err = profileService.Finalize(ctx, userID)
		ve, ok := types.AsValidationError(err)
		require.True(t, ok, "expected validation error, got %v", err)
		assert.Equal(t, []string{"email", "aadhaar", "pan"}, ve.FieldNames())

		_, err = draftService.SaveDraft(ctx, userID, map[string]any{
			"email":   "asha.rao@example.com",
			"aadhaar": "123412341234",
			"pan":     "ABCDE1234F",
		})
		require.NoError(t, err)

		p, err := profileService.Finalize(ctx, userID)
		require.NoError(t, err)
		assert.False(t, p.IsDraft)
		assert.Equal(t, types.ProfileStatusPending, p.Status)
		assert.Equal(t, "Asha", p.Data.String("name"))

		stored, err := profileService.GetProfile(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, p.CompletionPercentage, stored.CompletionPercentage)

		_, err = profileService.Transition(ctx, userID, types.ProfileStatusVerified)
		require.NoError(t, err)
		_, err = profileService.Transition(ctx, userID, types.ProfileStatusPending)
		assert.ErrorIs(t, err, types.ErrInvalidTransition)
	})

	t.Run("profile edits after finalize survive the next finalize", func(t *testing.T) {
		userID := createUser(t, pool)

		_, err := draftService.SaveDraft(ctx, userID, map[string]any{
			"name":    "Meera",
			"email":   "meera@example.com",
			"mobile":  "9876543210",
			"aadhaar": "123412341234",
			"pan":     "ABCDE1234F",
		})
		require.NoError(t, err)
		_, err = profileService.Finalize(ctx, userID)
		require.NoError(t, err)

		draft, err := draftService.LoadDraft(ctx, userID)
		require.NoError(t, err)
		assert.NotNil(t, draft.SupersededAt)

		_, err = profileService.SaveProfile(ctx, userID, map[string]any{"mobile": "9999999999"})
		require.NoError(t, err)

		p, err := profileService.Finalize(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "9999999999", p.Data.String("mobile"))

		draft, err = draftService.SaveDraft(ctx, userID, map[string]any{"jobRole": "Driver"})
		require.NoError(t, err)
		assert.Nil(t, draft.SupersededAt)
		assert.Equal(t, types.Document{"jobRole": "Driver"}, draft.Data)

		p, err = profileService.Finalize(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "Driver", p.Data.String("jobRole"))
		assert.Equal(t, "9999999999", p.Data.String("mobile"))
	})

	t.Run("login activity and monthly registrations", func(t *testing.T) {
		userID := createUser(t, pool)
		statsRepo := admin.NewPostgresStatsRepo(pool, logger)
		now := time.Now().UTC()
		since := now.AddDate(0, 0, -30)

		before, err := statsRepo.ActiveUsers(ctx, since)
		require.NoError(t, err)
		require.NoError(t, auth.NewPostgresAuthRepo(pool, logger).TouchLastLogin(ctx, userID))
		after, err := statsRepo.ActiveUsers(ctx, since)
		require.NoError(t, err)
		assert.Equal(t, before+1, after)

		months, err := statsRepo.RegistrationsByMonth(ctx, time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.NotEmpty(t, months)
		last := months[len(months)-1]
		assert.Equal(t, now.Format("2006-01"), last.Month)
		assert.GreaterOrEqual(t, last.Count, 1)
	})

	t.Run("duplicate email leaves the original intact", func(t *testing.T) {
		first := createUser(t, pool)
		second := createUser(t, pool)

		_, err := profileService.SaveProfile(ctx, first, map[string]any{"email": "taken@example.com"})
		require.NoError(t, err)
		_, err = profileService.SaveProfile(ctx, second, map[string]any{"name": "Ravi"})
		require.NoError(t, err)

		_, err = profileService.SaveProfile(ctx, second, map[string]any{"email": "TAKEN@example.com"})
		assert.ErrorIs(t, err, types.ErrDuplicateKey)

		original, err := profileService.GetProfile(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, "taken@example.com", original.Data.String("email"))

		other, err := profileService.GetProfile(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, "Ravi", other.Data.String("name"))
		assert.Empty(t, other.Data.String("email"))
	})
}
