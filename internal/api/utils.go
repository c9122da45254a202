package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// Response is the error envelope returned by every endpoint.
type Response struct {
	Success   bool               `json:"success"`
	Kind      string             `json:"kind,omitempty"`
	Error     string             `json:"error,omitempty"`
	Fields    []types.FieldError `json:"fields,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// ErrorResponse writes a standard JSON error response including request ID.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSONResponse(w, r, status, Response{
		Success:   false,
		Kind:      kindForStatus(status),
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// WriteError maps a domain error onto its HTTP status and writes the
// structured error body. Internal failures get a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	resp := Response{Success: false, RequestID: middleware.GetReqID(r.Context())}
	status := http.StatusInternalServerError

	if ve, ok := types.AsValidationError(err); ok {
		status, resp.Kind, resp.Error, resp.Fields = http.StatusBadRequest, "validation", "Validation failed", ve.Fields
		WriteJSONResponse(w, r, status, resp)
		return
	}

	switch {
	case errors.Is(err, types.ErrUnauthorized):
		status, resp.Kind, resp.Error = http.StatusUnauthorized, "unauthorized", "Authentication required"
	case errors.Is(err, types.ErrForbidden):
		status, resp.Kind, resp.Error = http.StatusForbidden, "forbidden", "Access denied"
	case errors.Is(err, types.ErrNotFound):
		status, resp.Kind, resp.Error = http.StatusNotFound, "not_found", "Not found"
	case errors.Is(err, types.ErrDuplicateKey):
		status, resp.Kind, resp.Error = http.StatusConflict, "duplicate_key", "Email already registered"
	case errors.Is(err, types.ErrInvalidTransition):
		status, resp.Kind, resp.Error = http.StatusConflict, "invalid_transition", "Status change not allowed"
	case errors.Is(err, types.ErrUpload):
		resp.Kind, resp.Error = "upload", "File upload failed"
	case errors.Is(err, types.ErrPersistence):
		resp.Kind, resp.Error = "persistence", "Internal server error"
	default:
		resp.Kind, resp.Error = "internal", "Internal server error"
	}
	WriteJSONResponse(w, r, status, resp)
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if status >= 500 {
		return "internal"
	}
	return ""
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(js); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write response body",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	}
}

// DecodeJSONBody reads and decodes a JSON request body safely.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q (wanted %s)", unmarshalTypeError.Field, unmarshalTypeError.Type)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return fmt.Errorf("body contains unknown key %q", fieldName)

		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

		case errors.As(err, &invalidUnmarshalError):
			panic(fmt.Errorf("developer error: invalid argument passed to json.Unmarshal: %w", err))

		default:
			return fmt.Errorf("error decoding JSON body: %w", err)
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// VerifyAudience reports whether expectedAudience is listed in the claim.
// An empty expectation always passes.
func VerifyAudience(claimsAudience jwt.ClaimStrings, expectedAudience string) bool {
	if expectedAudience == "" {
		return true
	}
	for _, aud := range claimsAudience {
		if aud == expectedAudience {
			return true
		}
	}
	return false
}
