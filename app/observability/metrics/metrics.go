package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	DraftSavesTotal        metric.Int64Counter
	ProfileSavesTotal      metric.Int64Counter
	FinalizeTotal          metric.Int64Counter
	UploadBytesTotal       metric.Int64Counter
	RegisterRequestsTotal  metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
	DbQueryErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once from the global MeterProvider.
// Instruments created before the provider is installed are delegated to it
// once it is.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("gigs-profile-service")
		m := &AppMetrics{}
		var err error

		if m.DraftSavesTotal, err = meter.Int64Counter(
			"draft_saves_total",
			metric.WithDescription("Total number of draft save requests by outcome"),
			metric.WithUnit("{request}"),
		); err != nil {
			log.Fatalf("Metrics: Failed to create draft_saves_total: %v", err)
		}

		if m.ProfileSavesTotal, err = meter.Int64Counter(
			"profile_saves_total",
			metric.WithDescription("Total number of profile save requests by outcome"),
			metric.WithUnit("{request}"),
		); err != nil {
			log.Fatalf("Metrics: Failed to create profile_saves_total: %v", err)
		}

		if m.FinalizeTotal, err = meter.Int64Counter(
			"profile_finalize_total",
			metric.WithDescription("Total number of finalize attempts by outcome"),
			metric.WithUnit("{request}"),
		); err != nil {
			log.Fatalf("Metrics: Failed to create profile_finalize_total: %v", err)
		}

		if m.UploadBytesTotal, err = meter.Int64Counter(
			"upload_bytes_total",
			metric.WithDescription("Bytes stored in object storage by bucket"),
			metric.WithUnit("By"),
		); err != nil {
			log.Fatalf("Metrics: Failed to create upload_bytes_total: %v", err)
		}

		if m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of register requests completed"),
			metric.WithUnit("{request}"),
		); err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		if m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		); err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		if m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		); err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the application metrics, creating them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

// ObserveQuery records the duration of a database operation and counts it
// as an error when err is set.
func ObserveQuery(ctx context.Context, op string, start time.Time, err error) {
	m := Get()
	attrs := metric.WithAttributes(attribute.String("db.operation", op))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// Outcome adds one to counter labelled with the outcome of a request.
func Outcome(ctx context.Context, counter metric.Int64Counter, outcome string) {
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
