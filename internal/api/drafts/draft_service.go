package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/gigs-profile-service/app/observability/metrics"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/merge"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/schema"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// Ensure implementation satisfies the interface
var _ DraftService = (*DraftServiceImpl)(nil)

// DraftService persists partially filled registrations.
type DraftService interface {
	// SaveDraft canonicalizes and validates payload, then merges it into the
	// stored draft of userID. Repeated calls are additive.
	SaveDraft(ctx context.Context, userID uuid.UUID, payload map[string]any) (*types.ProfileDraft, error)
	// LoadDraft returns the stored draft or types.ErrNotFound.
	LoadDraft(ctx context.Context, userID uuid.UUID) (*types.ProfileDraft, error)
}

type DraftServiceImpl struct {
	logger *slog.Logger
	repo   DraftRepository
}

func NewDraftService(repo DraftRepository, logger *slog.Logger) *DraftServiceImpl {
	return &DraftServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// SaveDraft implements DraftService.
func (s *DraftServiceImpl) SaveDraft(ctx context.Context, userID uuid.UUID, payload map[string]any) (*types.ProfileDraft, error) {
	ctx, span := otel.Tracer("DraftService").Start(ctx, "SaveDraft", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("payload.keys", len(payload)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SaveDraft"), slog.String("userID", userID.String()))
	m := metrics.Get()

	incoming := schema.Canonicalize(payload)
	if verr := schema.ValidateDocument(incoming); verr != nil {
		l.InfoContext(ctx, "Draft rejected", slog.Any("fields", verr.FieldNames()))
		span.SetStatus(codes.Error, "Validation failed")
		metrics.Outcome(ctx, m.DraftSavesTotal, "invalid")
		return nil, verr
	}

	draft, err := s.repo.Update(ctx, userID, func(current types.Document) (types.Document, bool, error) {
		if !merge.Changed(current, incoming) {
			return current, false, nil
		}
		return merge.Apply(current, incoming), true, nil
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to save draft", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save draft")
		metrics.Outcome(ctx, m.DraftSavesTotal, "error")
		return nil, fmt.Errorf("error saving draft: %w", err)
	}

	l.InfoContext(ctx, "Draft saved", slog.Int("fields", len(draft.Data)))
	span.SetStatus(codes.Ok, "Draft saved")
	metrics.Outcome(ctx, m.DraftSavesTotal, "ok")
	return draft, nil
}

// LoadDraft implements DraftService.
func (s *DraftServiceImpl) LoadDraft(ctx context.Context, userID uuid.UUID) (*types.ProfileDraft, error) {
	ctx, span := otel.Tracer("DraftService").Start(ctx, "LoadDraft", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "LoadDraft"), slog.String("userID", userID.String()))

	draft, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.DebugContext(ctx, "No draft found")
			span.SetStatus(codes.Ok, "No draft")
			return nil, err
		}
		l.ErrorContext(ctx, "Failed to load draft", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load draft")
		return nil, fmt.Errorf("error loading draft: %w", err)
	}

	span.SetStatus(codes.Ok, "Draft loaded")
	return draft, nil
}
