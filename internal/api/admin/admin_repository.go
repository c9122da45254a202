package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/gigs-profile-service/app/db"
	"github.com/FACorreiaa/gigs-profile-service/app/observability/metrics"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

var _ StatsRepository = (*PostgresStatsRepo)(nil)

// StatsRepository answers the user-level questions of the dashboard.
type StatsRepository interface {
	// ActiveUsers counts users whose last login is at or after since.
	ActiveUsers(ctx context.Context, since time.Time) (int, error)
	// RegistrationsByMonth returns one entry per month with registrations
	// at or after since. Months without any are absent.
	RegistrationsByMonth(ctx context.Context, since time.Time) ([]types.MonthlyCount, error)
}

type PostgresStatsRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresStatsRepo(pgpool database.Pool, logger *slog.Logger) *PostgresStatsRepo {
	return &PostgresStatsRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// ActiveUsers implements StatsRepository.
func (r *PostgresStatsRepo) ActiveUsers(ctx context.Context, since time.Time) (int, error) {
	ctx, span := otel.Tracer("StatsRepo").Start(ctx, "ActiveUsers", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	start := time.Now()
	var n int
	err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE last_login >= $1`, since).Scan(&n)
	metrics.ObserveQuery(ctx, "users.active", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Count failed")
		return 0, fmt.Errorf("%w: counting active users: %v", types.ErrPersistence, err)
	}
	span.SetStatus(codes.Ok, "Active users counted")
	return n, nil
}

// RegistrationsByMonth implements StatsRepository.
func (r *PostgresStatsRepo) RegistrationsByMonth(ctx context.Context, since time.Time) ([]types.MonthlyCount, error) {
	ctx, span := otel.Tracer("StatsRepo").Start(ctx, "RegistrationsByMonth", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, `
		SELECT date_trunc('month', created_at) AS month, COUNT(*)
		FROM users
		WHERE created_at >= $1
		GROUP BY month
		ORDER BY month`, since)
	if err != nil {
		metrics.ObserveQuery(ctx, "users.by_month", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("%w: grouping registrations: %v", types.ErrPersistence, err)
	}
	defer rows.Close()

	var out []types.MonthlyCount
	for rows.Next() {
		var (
			month time.Time
			n     int
		)
		if err := rows.Scan(&month, &n); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: scanning registration row: %v", types.ErrPersistence, err)
		}
		out = append(out, types.MonthlyCount{Month: month.UTC().Format(monthLayout), Count: n})
	}
	if err := rows.Err(); err != nil {
		metrics.ObserveQuery(ctx, "users.by_month", start, err)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: iterating registration rows: %v", types.ErrPersistence, err)
	}
	metrics.ObserveQuery(ctx, "users.by_month", start, nil)

	span.SetStatus(codes.Ok, "Registrations grouped")
	return out, nil
}
