package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
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

var _ ProfileRepository = (*PostgresProfileRepo)(nil)

// MutateFunc edits p in place while its row is locked. Returning
// changed=false skips the write.
type MutateFunc func(p *types.Profile) (changed bool, err error)

// FinalizeFunc folds draft (nil when the user has none) into p while both
// rows are locked. Returning an error aborts without writing.
type FinalizeFunc func(p *types.Profile, draft types.Document) error

// ProfileFilter narrows Count. Nil fields do not filter.
type ProfileFilter struct {
	Status       *types.ProfileStatus
	IsDraft      *bool
	CreatedSince *time.Time
}

// ProfileRepository defines the contract for profile persistence.
type ProfileRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	// Upsert creates a draft profile when missing, then applies fn under lock.
	Upsert(ctx context.Context, userID uuid.UUID, fn MutateFunc) (*types.Profile, error)
	// Update applies fn under lock and fails with types.ErrNotFound when the
	// profile does not exist.
	Update(ctx context.Context, userID uuid.UUID, fn MutateFunc) (*types.Profile, error)
	// Finalize locks the draft and the profile of userID and persists what fn
	// makes of them. A superseded draft is passed as nil, and a draft that was
	// folded in is marked superseded. Neither existing is types.ErrNotFound.
	Finalize(ctx context.Context, userID uuid.UUID, fn FinalizeFunc) (*types.Profile, error)
	List(ctx context.Context, params types.ListProfilesParams) (*types.ProfilePage, error)
	Count(ctx context.Context, filter ProfileFilter) (int, error)
}

type PostgresProfileRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresProfileRepo(pgpool database.Pool, logger *slog.Logger) *PostgresProfileRepo {
	return &PostgresProfileRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const profileColumns = `data, status, is_draft, completion_percentage, created_at, updated_at`

// Get implements ProfileRepository.
func (r *PostgresProfileRepo) Get(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "profiles"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	start := time.Now()
	p, err := scanProfile(userID, r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if errors.Is(err, types.ErrNotFound) {
		metrics.ObserveQuery(ctx, "profiles.get", start, nil)
		r.logger.DebugContext(ctx, "No profile stored for user", slog.String("userID", userID.String()))
		span.SetStatus(codes.Ok, "Profile not found")
		return nil, err
	}
	metrics.ObserveQuery(ctx, "profiles.get", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch profile", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Profile fetched")
	return p, nil
}

// Upsert implements ProfileRepository.
func (r *PostgresProfileRepo) Upsert(ctx context.Context, userID uuid.UUID, fn MutateFunc) (*types.Profile, error) {
	return r.mutate(ctx, "Upsert", userID, true, fn)
}

// Update implements ProfileRepository.
func (r *PostgresProfileRepo) Update(ctx context.Context, userID uuid.UUID, fn MutateFunc) (*types.Profile, error) {
	return r.mutate(ctx, "Update", userID, false, fn)
}

func (r *PostgresProfileRepo) mutate(ctx context.Context, method string, userID uuid.UUID, create bool, fn MutateFunc) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, method, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
		attribute.String("db.user.id", userID.String()),
		attribute.Bool("create", create),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", method), slog.String("userID", userID.String()))
	start := time.Now()

	var profile *types.Profile
	err := database.WithTx(ctx, r.pgpool, func(tx pgx.Tx) error {
		if create {
			if _, err := tx.Exec(ctx,
				`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID,
			); err != nil {
				return fmt.Errorf("%w: creating profile: %v", types.ErrPersistence, err)
			}
		}

		p, err := lockProfile(ctx, tx, userID)
		if err != nil {
			return err
		}

		changed, err := fn(p)
		if err != nil {
			return err
		}
		if changed {
			if err := writeProfile(ctx, tx, p); err != nil {
				return err
			}
		}
		profile = p
		return nil
	})
	err = persistenceError(err)
	metrics.ObserveQuery(ctx, "profiles."+strings.ToLower(method), start, expectedAsNil(err))
	if err != nil {
		if expectedAsNil(err) == nil {
			l.InfoContext(ctx, "Profile not modified", slog.Any("reason", err))
		} else {
			l.ErrorContext(ctx, "Failed to modify profile", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "Profile not modified")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Profile modified")
	return profile, nil
}

// Finalize implements ProfileRepository.
func (r *PostgresProfileRepo) Finalize(ctx context.Context, userID uuid.UUID, fn FinalizeFunc) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "Finalize", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Finalize"), slog.String("userID", userID.String()))
	start := time.Now()

	var profile *types.Profile
	err := database.WithTx(ctx, r.pgpool, func(tx pgx.Tx) error {
		var draft types.Document
		var raw []byte
		var superseded bool
		err := tx.QueryRow(ctx,
			`SELECT data, superseded_at IS NOT NULL FROM profile_drafts WHERE user_id = $1 FOR UPDATE`, userID,
		).Scan(&raw, &superseded)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("%w: locking draft: %v", types.ErrPersistence, err)
		case !superseded:
			if draft, err = decodeDocument(raw); err != nil {
				return err
			}
		}

		p, err := lockProfile(ctx, tx, userID)
		exists := err == nil
		if err != nil {
			if !errors.Is(err, types.ErrNotFound) || draft == nil {
				return err
			}
			p = &types.Profile{
				UserID:  userID,
				Data:    types.Document{},
				Status:  types.ProfileStatusDraft,
				IsDraft: true,
			}
		}

		if err := fn(p, draft); err != nil {
			return err
		}

		if exists {
			err = writeProfile(ctx, tx, p)
		} else {
			err = insertProfile(ctx, tx, p)
		}
		if err != nil {
			return err
		}

		if draft != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE profile_drafts SET superseded_at = NOW() WHERE user_id = $1`, userID,
			); err != nil {
				return fmt.Errorf("%w: superseding draft: %v", types.ErrPersistence, err)
			}
		}
		profile = p
		return nil
	})
	err = persistenceError(err)
	metrics.ObserveQuery(ctx, "profiles.finalize", start, expectedAsNil(err))
	if err != nil {
		if expectedAsNil(err) == nil {
			l.InfoContext(ctx, "Profile not finalized", slog.Any("reason", err))
		} else {
			l.ErrorContext(ctx, "Failed to finalize profile", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "Profile not finalized")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Profile finalized")
	return profile, nil
}

// List implements ProfileRepository.
func (r *PostgresProfileRepo) List(ctx context.Context, params types.ListProfilesParams) (*types.ProfilePage, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "profiles"),
		attribute.Int("page", params.Page),
		attribute.Int("limit", params.Limit),
	))
	defer span.End()

	start := time.Now()
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(params.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(data->>'name' ILIKE $%d OR email ILIKE $%d OR data->>'mobile' ILIKE $%d)", n, n, n))
	}
	if params.Status != nil {
		args = append(args, string(*params.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`+where, args...).Scan(&total); err != nil {
		metrics.ObserveQuery(ctx, "profiles.list", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Count failed")
		return nil, fmt.Errorf("%w: counting profiles: %v", types.ErrPersistence, err)
	}

	offset := (params.Page - 1) * params.Limit
	query := fmt.Sprintf(`
		SELECT user_id, COALESCE(data->>'name', ''), COALESCE(data->>'email', ''), COALESCE(data->>'mobile', ''),
		       status, is_draft, completion_percentage, created_at, updated_at
		FROM profiles%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	rows, err := r.pgpool.Query(ctx, query, append(args, params.Limit, offset)...)
	if err != nil {
		metrics.ObserveQuery(ctx, "profiles.list", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("%w: listing profiles: %v", types.ErrPersistence, err)
	}
	defer rows.Close()

	page := &types.ProfilePage{Profiles: []types.ProfileSummary{}, Total: total, Page: params.Page}
	for rows.Next() {
		var s types.ProfileSummary
		var status string
		if err := rows.Scan(&s.UserID, &s.Name, &s.Email, &s.Mobile,
			&status, &s.IsDraft, &s.CompletionPercentage, &s.CreatedAt, &s.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: scanning profile row: %v", types.ErrPersistence, err)
		}
		if s.Status, err = types.ParseProfileStatus(status); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrPersistence, err)
		}
		page.Profiles = append(page.Profiles, s)
	}
	if err := rows.Err(); err != nil {
		metrics.ObserveQuery(ctx, "profiles.list", start, err)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: iterating profile rows: %v", types.ErrPersistence, err)
	}
	metrics.ObserveQuery(ctx, "profiles.list", start, nil)

	if params.Limit > 0 {
		page.TotalPages = (total + params.Limit - 1) / params.Limit
	}
	span.SetAttributes(attribute.Int("total_records", total), attribute.Int("profiles.count", len(page.Profiles)))
	span.SetStatus(codes.Ok, "Profiles listed")
	return page, nil
}

// Count implements ProfileRepository.
func (r *PostgresProfileRepo) Count(ctx context.Context, filter ProfileFilter) (int, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "Count", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "profiles"),
	))
	defer span.End()

	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.IsDraft != nil {
		args = append(args, *filter.IsDraft)
		conds = append(conds, fmt.Sprintf("is_draft = $%d", len(args)))
	}
	if filter.CreatedSince != nil {
		args = append(args, *filter.CreatedSince)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	query := `SELECT COUNT(*) FROM profiles`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	start := time.Now()
	var n int
	err := r.pgpool.QueryRow(ctx, query, args...).Scan(&n)
	metrics.ObserveQuery(ctx, "profiles.count", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Count failed")
		return 0, fmt.Errorf("%w: counting profiles: %v", types.ErrPersistence, err)
	}
	span.SetStatus(codes.Ok, "Profiles counted")
	return n, nil
}

func lockProfile(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*types.Profile, error) {
	return scanProfile(userID, tx.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 FOR UPDATE`, userID))
}

func scanProfile(userID uuid.UUID, row pgx.Row) (*types.Profile, error) {
	p := &types.Profile{UserID: userID}
	var raw []byte
	var status string
	err := row.Scan(&raw, &status, &p.IsDraft, &p.CompletionPercentage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading profile: %v", types.ErrPersistence, err)
	}
	if p.Status, err = types.ParseProfileStatus(status); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrPersistence, err)
	}
	if p.Data, err = decodeDocument(raw); err != nil {
		return nil, err
	}
	return p, nil
}

func writeProfile(ctx context.Context, tx pgx.Tx, p *types.Profile) error {
	payload, err := json.Marshal(p.Data)
	if err != nil {
		return fmt.Errorf("%w: encoding profile: %v", types.ErrPersistence, err)
	}
	err = tx.QueryRow(ctx, `
		UPDATE profiles
		SET data = $2, status = $3, is_draft = $4, completion_percentage = $5, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at`,
		p.UserID, payload, string(p.Status), p.IsDraft, p.CompletionPercentage,
	).Scan(&p.UpdatedAt)
	return writeError("updating profile", err)
}

func insertProfile(ctx context.Context, tx pgx.Tx, p *types.Profile) error {
	payload, err := json.Marshal(p.Data)
	if err != nil {
		return fmt.Errorf("%w: encoding profile: %v", types.ErrPersistence, err)
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO profiles (user_id, data, status, is_draft, completion_percentage)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.UserID, payload, string(p.Status), p.IsDraft, p.CompletionPercentage,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return writeError("inserting profile", err)
}

func writeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s: email already registered", types.ErrDuplicateKey, op)
	default:
		return fmt.Errorf("%w: %s: %v", types.ErrPersistence, op, err)
	}
}

func persistenceError(err error) error {
	if errors.Is(err, database.ErrTx) {
		return fmt.Errorf("%w: %w", types.ErrPersistence, err)
	}
	return err
}

// expectedAsNil hides the outcomes that are part of normal operation from
// the DB error counter.
func expectedAsNil(err error) error {
	if _, ok := types.AsValidationError(err); ok {
		return nil
	}
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrDuplicateKey) || errors.Is(err, types.ErrInvalidTransition) {
		return nil
	}
	return err
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
