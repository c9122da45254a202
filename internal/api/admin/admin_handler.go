package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/gigs-profile-service/internal/api"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// ProfileListResponse is a page of the admin listing.
type ProfileListResponse struct {
	Success bool `json:"success"`
	*types.ProfilePage
}

// ProfileResponse wraps a single profile.
type ProfileResponse struct {
	Success bool           `json:"success"`
	Profile *types.Profile `json:"profile"`
}

// StatsResponse wraps the dashboard figures.
type StatsResponse struct {
	Success bool                  `json:"success"`
	Stats   *types.DashboardStats `json:"stats"`
}

type HandlerImpl struct {
	adminService AdminService
	logger       *slog.Logger
}

func NewHandlerImpl(adminService AdminService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create AdminHandler with nil logger!")
	}
	return &HandlerImpl{adminService: adminService, logger: logger}
}

// ListProfiles godoc
// @Summary      List profiles
// @Description  Paginated profile listing with search over name, email and mobile
// @Tags         Admin
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Page size" default(20)
// @Param        search query string false "Search term"
// @Param        status query string false "Status filter" Enums(draft, pending, verified, complete)
// @Success      200 {object} ProfileListResponse
// @Failure      400 {object} api.Response "Bad Request"
// @Failure      403 {object} api.Response "Forbidden"
// @Security     BearerAuth
// @Router       /admin/profiles [get]
func (h *HandlerImpl) ListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "ListProfiles", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/admin/profiles"),
	))
	defer span.End()

	q := r.URL.Query()
	params := types.ListProfilesParams{Search: q.Get("search")}
	var err error
	if params.Page, err = intParam(q.Get("page"), 1); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "page must be a number")
		return
	}
	if params.Limit, err = intParam(q.Get("limit"), defaultPageSize); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be a number")
		return
	}
	if s := q.Get("status"); s != "" {
		st, err := types.ParseProfileStatus(s)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("unknown status %q", s))
			return
		}
		params.Status = &st
	}

	page, err := h.adminService.ListProfiles(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		api.WriteError(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Profiles listed")
	api.WriteJSONResponse(w, r, http.StatusOK, ProfileListResponse{Success: true, ProfilePage: page})
}

// GetProfile godoc
// @Summary      Get a user's profile
// @Tags         Admin
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} ProfileResponse
// @Failure      400 {object} api.Response "Invalid user ID"
// @Failure      404 {object} api.Response "Not found"
// @Security     BearerAuth
// @Router       /admin/profiles/{userID} [get]
func (h *HandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "GetProfile", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/admin/profiles/{userID}"),
	))
	defer span.End()

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	p, err := h.adminService.GetProfile(ctx, userID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Profile fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, ProfileResponse{Success: true, Profile: p})
}

// UpdateStatus godoc
// @Summary      Review a profile
// @Description  Moves a profile forward through pending, verified and complete
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        userID path string true "User ID"
// @Param        body body types.UpdateStatusRequest true "Target status"
// @Success      200 {object} ProfileResponse
// @Failure      400 {object} api.Response "Unknown status"
// @Failure      404 {object} api.Response "Not found"
// @Failure      409 {object} api.Response "Transition not allowed"
// @Security     BearerAuth
// @Router       /admin/profiles/{userID}/status [put]
func (h *HandlerImpl) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "UpdateStatus", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/admin/profiles/{userID}/status"),
	))
	defer span.End()

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req types.UpdateStatusRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	p, err := h.adminService.UpdateStatus(ctx, userID, req.Status)
	if err != nil {
		span.SetStatus(codes.Error, "Status update failed")
		api.WriteError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "Profile reviewed",
		slog.String("userID", userID.String()), slog.String("status", string(p.Status)))
	span.SetStatus(codes.Ok, "Status updated")
	api.WriteJSONResponse(w, r, http.StatusOK, ProfileResponse{Success: true, Profile: p})
}

// DashboardStats godoc
// @Summary      Dashboard statistics
// @Tags         Admin
// @Produce      json
// @Success      200 {object} StatsResponse
// @Failure      403 {object} api.Response "Forbidden"
// @Security     BearerAuth
// @Router       /admin/dashboard-stats [get]
func (h *HandlerImpl) DashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "DashboardStats", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/admin/dashboard-stats"),
	))
	defer span.End()

	stats, err := h.adminService.DashboardStats(ctx)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Stats served")
	api.WriteJSONResponse(w, r, http.StatusOK, StatsResponse{Success: true, Stats: stats})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
