package profiles

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
	"github.com/FACorreiaa/gigs-profile-service/internal/events"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// Ensure implementation satisfies the interface
var _ ProfileService = (*ProfileServiceImpl)(nil)

// ProfileService owns the profile lifecycle from first save to admin review.
type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	// SaveProfile merges payload into the profile of userID, creating it as a
	// draft when missing.
	SaveProfile(ctx context.Context, userID uuid.UUID, payload map[string]any) (*types.Profile, error)
	// Finalize promotes the draft into a reviewable profile. Every missing
	// required field is reported in a *types.ValidationError.
	Finalize(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	// Transition applies an admin review decision.
	Transition(ctx context.Context, userID uuid.UUID, to types.ProfileStatus) (*types.Profile, error)
}

type ProfileServiceImpl struct {
	logger    *slog.Logger
	repo      ProfileRepository
	publisher events.Publisher
}

func NewProfileService(repo ProfileRepository, publisher events.Publisher, logger *slog.Logger) *ProfileServiceImpl {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ProfileServiceImpl{
		logger:    logger,
		repo:      repo,
		publisher: publisher,
	}
}

// GetProfile implements ProfileService.
func (s *ProfileServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "GetProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Ok, "No profile")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch profile")
		return nil, fmt.Errorf("error fetching profile: %w", err)
	}
	span.SetStatus(codes.Ok, "Profile fetched")
	return p, nil
}

// SaveProfile implements ProfileService.
func (s *ProfileServiceImpl) SaveProfile(ctx context.Context, userID uuid.UUID, payload map[string]any) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "SaveProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("payload.keys", len(payload)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SaveProfile"), slog.String("userID", userID.String()))
	m := metrics.Get()

	incoming := schema.Canonicalize(payload)
	if verr := schema.ValidateDocument(incoming); verr != nil {
		l.InfoContext(ctx, "Profile rejected", slog.Any("fields", verr.FieldNames()))
		span.SetStatus(codes.Error, "Validation failed")
		metrics.Outcome(ctx, m.ProfileSavesTotal, "invalid")
		return nil, verr
	}

	p, err := s.repo.Upsert(ctx, userID, func(p *types.Profile) (bool, error) {
		if !merge.Changed(p.Data, incoming) {
			return false, nil
		}
		next := merge.Apply(p.Data, incoming)
		if !p.IsDraft {
			if missing := schema.MissingRequired(next); len(missing) > 0 {
				return false, missingFieldsError(missing)
			}
		}
		p.Data = next
		p.CompletionPercentage = schema.Completion(next)
		return true, nil
	})
	if err != nil {
		if _, ok := types.AsValidationError(err); ok {
			metrics.Outcome(ctx, m.ProfileSavesTotal, "invalid")
			span.SetStatus(codes.Error, "Required field cleared")
			return nil, err
		}
		if errors.Is(err, types.ErrDuplicateKey) {
			metrics.Outcome(ctx, m.ProfileSavesTotal, "duplicate")
			l.InfoContext(ctx, "Profile email already registered")
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, err
		}
		l.ErrorContext(ctx, "Failed to save profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save profile")
		metrics.Outcome(ctx, m.ProfileSavesTotal, "error")
		return nil, fmt.Errorf("error saving profile: %w", err)
	}

	l.InfoContext(ctx, "Profile saved", slog.Int("completion", p.CompletionPercentage))
	span.SetAttributes(attribute.Int("profile.completion", p.CompletionPercentage))
	span.SetStatus(codes.Ok, "Profile saved")
	metrics.Outcome(ctx, m.ProfileSavesTotal, "ok")
	return p, nil
}

// Finalize implements ProfileService.
func (s *ProfileServiceImpl) Finalize(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "Finalize", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Finalize"), slog.String("userID", userID.String()))
	m := metrics.Get()

	p, err := s.repo.Finalize(ctx, userID, func(p *types.Profile, draft types.Document) error {
		data := p.Data
		if draft != nil {
			data = merge.Apply(p.Data, draft)
		}
		if missing := schema.MissingRequired(data); len(missing) > 0 {
			return missingFieldsError(missing)
		}
		p.Data = data
		p.CompletionPercentage = schema.Completion(data)
		p.IsDraft = false
		if p.Status == types.ProfileStatusDraft {
			p.Status = types.ProfileStatusPending
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			metrics.Outcome(ctx, m.FinalizeTotal, "not_found")
			span.SetStatus(codes.Error, "Nothing to finalize")
			return nil, err
		case errors.Is(err, types.ErrDuplicateKey):
			metrics.Outcome(ctx, m.FinalizeTotal, "duplicate")
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, err
		}
		if verr, ok := types.AsValidationError(err); ok {
			l.InfoContext(ctx, "Profile incomplete", slog.Any("missing", verr.FieldNames()))
			metrics.Outcome(ctx, m.FinalizeTotal, "incomplete")
			span.SetStatus(codes.Error, "Required fields missing")
			return nil, err
		}
		l.ErrorContext(ctx, "Failed to finalize profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to finalize profile")
		metrics.Outcome(ctx, m.FinalizeTotal, "error")
		return nil, fmt.Errorf("error finalizing profile: %w", err)
	}

	if err := s.publisher.ProfileFinalized(ctx, p); err != nil {
		l.WarnContext(ctx, "Failed to publish finalize event", slog.Any("error", err))
	}

	l.InfoContext(ctx, "Profile finalized", slog.String("status", string(p.Status)))
	span.SetStatus(codes.Ok, "Profile finalized")
	metrics.Outcome(ctx, m.FinalizeTotal, "ok")
	return p, nil
}

// Transition implements ProfileService.
func (s *ProfileServiceImpl) Transition(ctx context.Context, userID uuid.UUID, to types.ProfileStatus) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "Transition", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("profile.status.to", string(to)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Transition"), slog.String("userID", userID.String()))

	var from types.ProfileStatus
	p, err := s.repo.Update(ctx, userID, func(p *types.Profile) (bool, error) {
		from = p.Status
		if p.Status == to {
			return false, nil
		}
		if !CanTransition(p.Status, to) {
			return false, fmt.Errorf("%w: %s to %s", types.ErrInvalidTransition, p.Status, to)
		}
		p.Status = to
		return true, nil
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidTransition) {
			l.InfoContext(ctx, "Status change rejected", slog.Any("reason", err))
			span.SetStatus(codes.Error, "Status change rejected")
			return nil, err
		}
		l.ErrorContext(ctx, "Failed to change status", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to change status")
		return nil, fmt.Errorf("error changing profile status: %w", err)
	}

	l.InfoContext(ctx, "Profile status changed", slog.String("from", string(from)), slog.String("to", string(to)))
	span.SetStatus(codes.Ok, "Status changed")
	return p, nil
}

// CanTransition reports whether an admin may move a profile from one status
// to another. Review only moves forward.
func CanTransition(from, to types.ProfileStatus) bool {
	switch from {
	case types.ProfileStatusPending:
		return to == types.ProfileStatusVerified || to == types.ProfileStatusComplete
	case types.ProfileStatusVerified:
		return to == types.ProfileStatusComplete
	}
	return false
}

func missingFieldsError(missing []string) *types.ValidationError {
	fields := make([]types.FieldError, 0, len(missing))
	for _, f := range missing {
		fields = append(fields, types.FieldError{Field: f, Reason: "required"})
	}
	return &types.ValidationError{Fields: fields}
}
