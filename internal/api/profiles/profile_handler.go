package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/gigs-profile-service/internal/api"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/auth"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/schema"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

const maxMultipartMemory = 32 << 20

// DocumentUploader stores the files of a multipart profile form.
type DocumentUploader interface {
	UploadDocuments(ctx context.Context, userID uuid.UUID, files map[string][]*multipart.FileHeader) (map[string]string, error)
}

// ProfileResponse wraps a stored profile.
type ProfileResponse struct {
	Success bool           `json:"success"`
	Profile *types.Profile `json:"profile"`
}

type HandlerImpl struct {
	profileService ProfileService
	uploader       DocumentUploader
	maxBodyBytes   int64
	logger         *slog.Logger
}

func NewHandlerImpl(profileService ProfileService, uploader DocumentUploader, maxBodyBytes int64, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create ProfileHandler with nil logger!")
	}
	return &HandlerImpl{
		profileService: profileService,
		uploader:       uploader,
		maxBodyBytes:   maxBodyBytes,
		logger:         logger,
	}
}

// GetProfile godoc
// @Summary      Get profile
// @Description  Returns the caller's profile
// @Tags         Profile
// @Produce      json
// @Success      200 {object} ProfileResponse
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      404 {object} api.Response "Profile not found"
// @Security     BearerAuth
// @Router       /profile [get]
func (h *HandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "GetProfile", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/profile"),
	))
	defer span.End()

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	p, err := h.profileService.GetProfile(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to fetch profile")
		api.WriteError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Profile fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, ProfileResponse{Success: true, Profile: p})
}

// SaveProfile godoc
// @Summary      Save profile
// @Description  Merges fields into the caller's profile. Accepts JSON, or a multipart form whose file fields are uploaded and stored as document URLs
// @Tags         Profile
// @Accept       json
// @Accept       multipart/form-data
// @Produce      json
// @Param        profile body object false "Partial profile"
// @Success      200 {object} ProfileResponse
// @Failure      400 {object} api.Response "Validation failed"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      409 {object} api.Response "Email already registered"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /profile [post]
func (h *HandlerImpl) SaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "SaveProfile", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/profile"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SaveProfile"))

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		l.WarnContext(ctx, "User ID not found in context")
		api.WriteError(w, r, err)
		return
	}

	var payload map[string]any
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		payload, err = h.readMultipart(w, r, userID)
		if err != nil {
			span.SetStatus(codes.Error, "Invalid form")
			if _, ok := types.AsValidationError(err); ok || errors.Is(err, types.ErrUpload) {
				api.WriteError(w, r, err)
				return
			}
			l.WarnContext(ctx, "Failed to read multipart form", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
			return
		}
	} else if err := api.DecodeJSONBody(w, r, &payload); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	p, err := h.profileService.SaveProfile(ctx, userID, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save profile")
		api.WriteError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Profile saved")
	api.WriteJSONResponse(w, r, http.StatusOK, ProfileResponse{Success: true, Profile: p})
}

// FinalizeProfile godoc
// @Summary      Finalize profile
// @Description  Merges the draft into the profile and submits it for review. Lists every missing required field on failure
// @Tags         Profile
// @Produce      json
// @Success      200 {object} ProfileResponse
// @Failure      400 {object} api.Response "Required fields missing"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      404 {object} api.Response "Nothing to finalize"
// @Security     BearerAuth
// @Router       /profile/finalize [post]
func (h *HandlerImpl) FinalizeProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "FinalizeProfile", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/profile/finalize"),
	))
	defer span.End()

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	p, err := h.profileService.Finalize(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "Finalize failed")
		api.WriteError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Profile finalized")
	api.WriteJSONResponse(w, r, http.StatusOK, ProfileResponse{Success: true, Profile: p})
}

// readMultipart turns a profile form into a payload. Text fields are
// validated, then files are uploaded and replaced by their URLs. Dotted keys
// such as address.city become sub-objects.
func (h *HandlerImpl) readMultipart(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (map[string]any, error) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	payload := map[string]any{}
	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		parent, sub, nested := strings.Cut(key, ".")
		if !nested {
			payload[key] = values[0]
			continue
		}
		obj, _ := payload[parent].(map[string]any)
		if obj == nil {
			obj = map[string]any{}
			payload[parent] = obj
		}
		obj[sub] = values[0]
	}

	if len(r.MultipartForm.File) > 0 {
		// reject bad text fields before any blob is stored or quota spent
		if verr := schema.ValidateDocument(schema.Canonicalize(payload)); verr != nil {
			return nil, verr
		}
		if h.uploader == nil {
			return nil, fmt.Errorf("%w: uploads not configured", types.ErrUpload)
		}
		urls, err := h.uploader.UploadDocuments(r.Context(), userID, r.MultipartForm.File)
		if err != nil {
			return nil, err
		}
		for field, url := range urls {
			payload[field] = url
		}
	}
	return payload, nil
}
