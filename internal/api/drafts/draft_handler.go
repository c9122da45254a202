package drafts

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/gigs-profile-service/internal/api"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/auth"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// DraftResponse wraps a stored draft.
type DraftResponse struct {
	Success bool                `json:"success"`
	Draft   *types.ProfileDraft `json:"draft"`
}

type HandlerImpl struct {
	draftService DraftService
	logger       *slog.Logger
}

func NewHandlerImpl(draftService DraftService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create DraftHandler with nil logger!")
	}
	return &HandlerImpl{
		draftService: draftService,
		logger:       logger,
	}
}

// SaveDraft godoc
// @Summary      Save draft
// @Description  Merges a partial profile, in canonical or legacy shape, into the caller's draft
// @Tags         Drafts
// @Accept       json
// @Produce      json
// @Param        draft body object true "Partial profile"
// @Success      200 {object} DraftResponse
// @Failure      400 {object} api.Response "Validation failed"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /profile/draft [post]
func (h *HandlerImpl) SaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DraftHandler").Start(r.Context(), "SaveDraft", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/profile/draft"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SaveDraft"))

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		l.WarnContext(ctx, "User ID not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.WriteError(w, r, err)
		return
	}

	var payload map[string]any
	if err := api.DecodeJSONBody(w, r, &payload); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	draft, err := h.draftService.SaveDraft(ctx, userID, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save draft")
		api.WriteError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Draft saved")
	api.WriteJSONResponse(w, r, http.StatusOK, DraftResponse{Success: true, Draft: draft})
}

// GetDraft godoc
// @Summary      Get draft
// @Description  Returns the caller's draft
// @Tags         Drafts
// @Produce      json
// @Success      200 {object} DraftResponse
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      404 {object} api.Response "No draft saved yet"
// @Security     BearerAuth
// @Router       /profile/draft [get]
func (h *HandlerImpl) GetDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DraftHandler").Start(r.Context(), "GetDraft", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/profile/draft"),
	))
	defer span.End()

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	draft, err := h.draftService.LoadDraft(ctx, userID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Draft loaded")
	api.WriteJSONResponse(w, r, http.StatusOK, DraftResponse{Success: true, Draft: draft})
}
