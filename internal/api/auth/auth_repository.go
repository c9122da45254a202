package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/gigs-profile-service/app/db"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

type AuthRepo interface {
	// CreateUser inserts the user together with its initial draft profile.
	CreateUser(ctx context.Context, user *types.UserAuth, profileData types.Document, completion int) (*types.UserAuth, error)
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error)
	// TouchLastLogin stamps the user's last successful login.
	TouchLastLogin(ctx context.Context, userID uuid.UUID) error
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresAuthRepo(pgpool database.Pool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// CreateUser implements AuthRepo.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, user *types.UserAuth, profileData types.Document, completion int) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users, profiles"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"))

	payload, err := json.Marshal(profileData)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding profile: %v", types.ErrPersistence, err)
	}

	created := *user
	err = database.WithTx(ctx, r.pgpool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO users (name, email, mobile, password_hash, role)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			user.Name, user.Email, user.Mobile, user.Password, user.Role,
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, data, completion_percentage) VALUES ($1, $2, $3)`,
			created.ID, payload, completion,
		)
		return err
	})
	if err != nil {
		span.RecordError(err)
		if database.IsUniqueViolation(err) {
			l.WarnContext(ctx, "Email already registered")
			span.SetStatus(codes.Error, "Email conflict")
			return nil, fmt.Errorf("email already registered: %w", types.ErrDuplicateKey)
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("%w: creating user: %v", types.ErrPersistence, err)
	}

	l.InfoContext(ctx, "User created", slog.String("userID", created.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	return &created, nil
}

// GetUserByEmail implements AuthRepo.
func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	return r.getUser(ctx, span, `WHERE lower(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByID implements AuthRepo.
func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	return r.getUser(ctx, span, `WHERE id = $1`, userID)
}

// TouchLastLogin implements AuthRepo.
func (r *PostgresAuthRepo) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "TouchLastLogin", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return fmt.Errorf("%w: stamping last login: %v", types.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return types.ErrNotFound
	}
	span.SetStatus(codes.Ok, "Last login stamped")
	return nil
}

func (r *PostgresAuthRepo) getUser(ctx context.Context, span trace.Span, where string, arg any) (*types.UserAuth, error) {
	var u types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, name, email, mobile, password_hash, role, created_at, updated_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Mobile, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("%w: fetching user: %v", types.ErrPersistence, err)
	}
	span.SetStatus(codes.Ok, "User fetched")
	return &u, nil
}
