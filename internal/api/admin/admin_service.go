// Package admin exposes the review panel over submitted profiles.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/gigs-profile-service/internal/api/profiles"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	statsCacheKey   = "dashboard-stats"
	monthLayout     = "2006-01"
	statsMonths     = 6
)

var _ AdminService = (*AdminServiceImpl)(nil)

type AdminService interface {
	ListProfiles(ctx context.Context, params types.ListProfilesParams) (*types.ProfilePage, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	UpdateStatus(ctx context.Context, userID uuid.UUID, status string) (*types.Profile, error)
	DashboardStats(ctx context.Context) (*types.DashboardStats, error)
}

type AdminServiceImpl struct {
	logger   *slog.Logger
	repo     profiles.ProfileRepository
	stats    StatsRepository
	profiles profiles.ProfileService
	cache    *cache.Cache
	now      func() time.Time
}

func NewAdminService(repo profiles.ProfileRepository, stats StatsRepository, profileService profiles.ProfileService, logger *slog.Logger) *AdminServiceImpl {
	return &AdminServiceImpl{
		logger:   logger,
		repo:     repo,
		stats:    stats,
		profiles: profileService,
		cache:    cache.New(5*time.Minute, 10*time.Minute),
		now:      time.Now,
	}
}

// ListProfiles implements AdminService.
func (s *AdminServiceImpl) ListProfiles(ctx context.Context, params types.ListProfilesParams) (*types.ProfilePage, error) {
	ctx, span := otel.Tracer("AdminService").Start(ctx, "ListProfiles")
	defer span.End()

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = defaultPageSize
	}
	if params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}

	page, err := s.repo.List(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list profiles")
		return nil, fmt.Errorf("error listing profiles: %w", err)
	}
	span.SetStatus(codes.Ok, "Profiles listed")
	return page, nil
}

// GetProfile implements AdminService.
func (s *AdminServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// UpdateStatus implements AdminService.
func (s *AdminServiceImpl) UpdateStatus(ctx context.Context, userID uuid.UUID, status string) (*types.Profile, error) {
	ctx, span := otel.Tracer("AdminService").Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("profile.status", status),
	))
	defer span.End()

	to, err := types.ParseProfileStatus(status)
	if err != nil {
		span.SetStatus(codes.Error, "Unknown status")
		return nil, &types.ValidationError{Fields: []types.FieldError{{Field: "status", Reason: "unknown status"}}}
	}

	p, err := s.profiles.Transition(ctx, userID, to)
	if err != nil {
		span.SetStatus(codes.Error, "Transition failed")
		return nil, err
	}
	s.cache.Delete(statsCacheKey)
	span.SetStatus(codes.Ok, "Status updated")
	return p, nil
}

// DashboardStats implements AdminService. Results are cached for a few
// minutes; a status change drops the cached copy.
func (s *AdminServiceImpl) DashboardStats(ctx context.Context) (*types.DashboardStats, error) {
	ctx, span := otel.Tracer("AdminService").Start(ctx, "DashboardStats")
	defer span.End()

	if cached, found := s.cache.Get(statsCacheKey); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		stats := *cached.(*types.DashboardStats)
		return &stats, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	now := s.now().UTC()
	since := now.AddDate(0, 0, -30)
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(statsMonths - 1), 0)
	isDraft := true
	status := func(st types.ProfileStatus) *types.ProfileStatus { return &st }

	stats := &types.DashboardStats{GeneratedAt: now}
	counts := []struct {
		dst    *int
		filter profiles.ProfileFilter
	}{
		{&stats.TotalProfiles, profiles.ProfileFilter{}},
		{&stats.Drafts, profiles.ProfileFilter{IsDraft: &isDraft}},
		{&stats.Pending, profiles.ProfileFilter{Status: status(types.ProfileStatusPending)}},
		{&stats.Verified, profiles.ProfileFilter{Status: status(types.ProfileStatusVerified)}},
		{&stats.Complete, profiles.ProfileFilter{Status: status(types.ProfileStatusComplete)}},
		{&stats.NewLast30Days, profiles.ProfileFilter{CreatedSince: &since}},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() error {
			n, err := s.repo.Count(gctx, c.filter)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.stats.ActiveUsers(gctx, since)
		if err != nil {
			return err
		}
		stats.ActiveLast30Days = n
		return nil
	})
	var byMonth []types.MonthlyCount
	g.Go(func() error {
		var err error
		byMonth, err = s.stats.RegistrationsByMonth(gctx, firstMonth)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to compute dashboard stats", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Stats failed")
		return nil, fmt.Errorf("error computing dashboard stats: %w", err)
	}

	stats.ByMonth = fillMonths(firstMonth, byMonth)

	s.cache.Set(statsCacheKey, stats, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "Stats computed")
	out := *stats
	return &out, nil
}

// fillMonths lays counts over statsMonths consecutive months starting at
// first, with zero for months the store had nothing for.
func fillMonths(first time.Time, counts []types.MonthlyCount) []types.MonthlyCount {
	byKey := make(map[string]int, len(counts))
	for _, c := range counts {
		byKey[c.Month] = c.Count
	}
	out := make([]types.MonthlyCount, 0, statsMonths)
	for i := range statsMonths {
		key := first.AddDate(0, i, 0).Format(monthLayout)
		out = append(out, types.MonthlyCount{Month: key, Count: byKey[key]})
	}
	return out
}
