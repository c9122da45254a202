package storage

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/gigs-profile-service/internal/api"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/auth"
)

// UploadResponse carries the URL of a stored file.
type UploadResponse struct {
	Success bool   `json:"success"`
	Bucket  string `json:"bucket"`
	URL     string `json:"url"`
}

type HandlerImpl struct {
	uploader *Uploader
	maxBytes int64
	logger   *slog.Logger
}

func NewHandlerImpl(uploader *Uploader, maxBytes int64, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create StorageHandler with nil logger!")
	}
	return &HandlerImpl{uploader: uploader, maxBytes: maxBytes, logger: logger}
}

// Upload godoc
// @Summary      Upload a file
// @Description  Stores a single file in the given bucket and returns its public URL
// @Tags         Storage
// @Accept       multipart/form-data
// @Produce      json
// @Param        bucketName query string true "Target bucket"
// @Param        file formData file true "File to upload"
// @Success      200 {object} UploadResponse
// @Failure      400 {object} api.Response "Missing file or unknown bucket"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      500 {object} api.Response "Upload failed"
// @Security     BearerAuth
// @Router       /storage/upload [post]
func (h *HandlerImpl) Upload(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("StorageHandler").Start(r.Context(), "Upload", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/storage/upload"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Upload"))

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	bucket := r.URL.Query().Get("bucketName")
	if bucket == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "bucketName is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			api.ErrorResponse(w, r, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		l.WarnContext(ctx, "Invalid multipart form", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	_, fh, err := r.FormFile("file")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "file is required")
		return
	}

	url, err := h.uploader.Upload(ctx, userID, bucket, fh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upload failed")
		api.WriteError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "File uploaded")
	api.WriteJSONResponse(w, r, http.StatusOK, UploadResponse{Success: true, Bucket: bucket, URL: url})
}
