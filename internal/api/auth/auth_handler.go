package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/gigs-profile-service/config"
	"github.com/FACorreiaa/gigs-profile-service/internal/api"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

type HandlerImpl struct {
	authService AuthService
	jwtCfg      config.JWTConfig
	logger      *slog.Logger
}

func NewAuthHandlerImpl(authService AuthService, jwtCfg config.JWTConfig, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create AuthHandler with nil logger!")
	}
	return &HandlerImpl{
		authService: authService,
		jwtCfg:      jwtCfg,
		logger:      logger,
	}
}

// Register godoc
// @Summary      Register
// @Description  Creates an account and an initial draft profile, and starts a session
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.RegisterRequest true "Registration details"
// @Success      201 {object} types.AuthResponse
// @Failure      400 {object} api.Response "Validation failed"
// @Failure      409 {object} api.Response "Email already registered"
// @Router       /auth/register [post]
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/register"),
	))
	defer span.End()
	l := h.logger.With(slog.String("handler", "Register"))

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	token, user, err := h.authService.Register(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Registration failed")
		api.WriteError(w, r, err)
		return
	}

	h.setSessionCookie(w, token)
	span.SetStatus(codes.Ok, "Registered")
	api.WriteJSONResponse(w, r, http.StatusCreated, types.AuthResponse{Success: true, Token: token, User: user})
}

// Login godoc
// @Summary      Login
// @Description  Exchanges credentials for an access token, also set as the session cookie
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.LoginRequest true "Credentials"
// @Success      200 {object} types.AuthResponse
// @Failure      400 {object} api.Response "Bad Request"
// @Failure      401 {object} api.Response "Invalid credentials"
// @Router       /auth/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/login"),
	))
	defer span.End()
	l := h.logger.With(slog.String("handler", "Login"))

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}
	if req.Email == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Login failed")
		api.WriteError(w, r, err)
		return
	}

	h.setSessionCookie(w, token)
	span.SetStatus(codes.Ok, "Logged in")
	api.WriteJSONResponse(w, r, http.StatusOK, types.AuthResponse{Success: true, Token: token, User: user})
}

// Logout godoc
// @Summary      Logout
// @Description  Clears the session cookie
// @Tags         Auth
// @Success      204
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *HandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.jwtCfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.jwtCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// Me godoc
// @Summary      Current user
// @Description  Returns the authenticated user
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.UserAuth
// @Failure      401 {object} api.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *HandlerImpl) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	user, err := h.authService.GetUserByID(ctx, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to load current user", slog.Any("error", err))
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *HandlerImpl) setSessionCookie(w http.ResponseWriter, token string) {
	if h.jwtCfg.CookieName == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.jwtCfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.jwtCfg.AccessTokenTTL),
		HttpOnly: true,
		Secure:   h.jwtCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
