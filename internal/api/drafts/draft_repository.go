package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/gigs-profile-service/app/db"
	"github.com/FACorreiaa/gigs-profile-service/app/observability/metrics"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

var _ DraftRepository = (*PostgresDraftRepo)(nil)

// MutateFunc receives the stored draft data and returns the data to persist.
// Returning changed=false skips the write.
type MutateFunc func(current types.Document) (next types.Document, changed bool, err error)

// DraftRepository defines the contract for draft persistence.
type DraftRepository interface {
	// Get returns the draft of userID or types.ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*types.ProfileDraft, error)
	// Update creates the draft when missing and applies fn to it while the row
	// is locked, so concurrent updates of one user are serialized.
	Update(ctx context.Context, userID uuid.UUID, fn MutateFunc) (*types.ProfileDraft, error)
}

type PostgresDraftRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresDraftRepo(pgpool database.Pool, logger *slog.Logger) *PostgresDraftRepo {
	return &PostgresDraftRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// Get implements DraftRepository.
func (r *PostgresDraftRepo) Get(ctx context.Context, userID uuid.UUID) (*types.ProfileDraft, error) {
	ctx, span := otel.Tracer("DraftRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profile_drafts"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Get"), slog.String("userID", userID.String()))
	start := time.Now()

	var raw []byte
	draft := &types.ProfileDraft{UserID: userID}
	err := r.pgpool.QueryRow(ctx,
		`SELECT data, updated_at, superseded_at FROM profile_drafts WHERE user_id = $1`, userID,
	).Scan(&raw, &draft.UpdatedAt, &draft.SupersededAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.ObserveQuery(ctx, "profile_drafts.get", start, nil)
			l.DebugContext(ctx, "No draft stored for user")
			span.SetStatus(codes.Ok, "Draft not found")
			return nil, types.ErrNotFound
		}
		metrics.ObserveQuery(ctx, "profile_drafts.get", start, err)
		l.ErrorContext(ctx, "Failed to fetch draft", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("%w: fetching draft: %v", types.ErrPersistence, err)
	}

	metrics.ObserveQuery(ctx, "profile_drafts.get", start, nil)

	if draft.Data, err = decodeDocument(raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Corrupt draft data")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Draft fetched")
	return draft, nil
}

// Update implements DraftRepository.
func (r *PostgresDraftRepo) Update(ctx context.Context, userID uuid.UUID, fn MutateFunc) (*types.ProfileDraft, error) {
	ctx, span := otel.Tracer("DraftRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "profile_drafts"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Update"), slog.String("userID", userID.String()))
	start := time.Now()

	draft := &types.ProfileDraft{UserID: userID}
	err := database.WithTx(ctx, r.pgpool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO profile_drafts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID,
		); err != nil {
			return fmt.Errorf("%w: creating draft: %v", types.ErrPersistence, err)
		}

		var raw []byte
		if err := tx.QueryRow(ctx,
			`SELECT data, updated_at, superseded_at FROM profile_drafts WHERE user_id = $1 FOR UPDATE`, userID,
		).Scan(&raw, &draft.UpdatedAt, &draft.SupersededAt); err != nil {
			return fmt.Errorf("%w: locking draft: %v", types.ErrPersistence, err)
		}
		stored, err := decodeDocument(raw)
		if err != nil {
			return err
		}

		// a superseded draft already lives in the profile
		current := stored
		if draft.SupersededAt != nil {
			current = types.Document{}
		}

		next, changed, err := fn(current)
		if err != nil {
			return err
		}
		if !changed {
			draft.Data = stored
			return nil
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("%w: encoding draft: %v", types.ErrPersistence, err)
		}
		if err := tx.QueryRow(ctx,
			`UPDATE profile_drafts SET data = $2, superseded_at = NULL, updated_at = NOW() WHERE user_id = $1 RETURNING updated_at`,
			userID, payload,
		).Scan(&draft.UpdatedAt); err != nil {
			return fmt.Errorf("%w: updating draft: %v", types.ErrPersistence, err)
		}
		draft.Data = next
		draft.SupersededAt = nil
		return nil
	})
	if errors.Is(err, database.ErrTx) {
		err = fmt.Errorf("%w: %w", types.ErrPersistence, err)
	}
	metrics.ObserveQuery(ctx, "profile_drafts.update", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update draft", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Draft update failed")
		return nil, err
	}

	l.DebugContext(ctx, "Draft updated", slog.Int("fields", len(draft.Data)))
	span.SetStatus(codes.Ok, "Draft updated")
	return draft, nil
}

func decodeDocument(raw []byte) (types.Document, error) {
	doc := types.Document{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding stored document: %v", types.ErrPersistence, err)
	}
	return doc, nil
}
