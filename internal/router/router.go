package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/FACorreiaa/gigs-profile-service/internal/api/admin"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/auth"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/drafts"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/profiles"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/storage"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler    *auth.HandlerImpl
	DraftHandler   *drafts.HandlerImpl
	ProfileHandler *profiles.HandlerImpl
	StorageHandler *storage.HandlerImpl
	AdminHandler   *admin.HandlerImpl

	AuthenticateMiddleware func(http.Handler) http.Handler
	AdminOnlyMiddleware    func(http.Handler) http.Handler

	AllowedOrigins []string
	// UploadsDir is served under /uploads when files are kept on local disk.
	UploadsDir string
}

// SetupRouter wires every route. Server-wide middleware (request id, logger,
// recoverer, rate limiting) is applied in main before mounting it.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	if cfg.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads", http.FileServer(http.Dir(cfg.UploadsDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		})

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Get("/auth/me", cfg.AuthHandler.Me)

			r.Post("/profile/draft", cfg.DraftHandler.SaveDraft)
			r.Get("/profile/draft", cfg.DraftHandler.GetDraft)
			r.Post("/profile/finalize", cfg.ProfileHandler.FinalizeProfile)
			r.Post("/profile", cfg.ProfileHandler.SaveProfile)
			r.Get("/profile", cfg.ProfileHandler.GetProfile)

			r.Post("/storage/upload", cfg.StorageHandler.Upload)
		})

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Use(cfg.AdminOnlyMiddleware)

			r.Get("/profiles", cfg.AdminHandler.ListProfiles)
			r.Get("/profiles/{userID}", cfg.AdminHandler.GetProfile)
			r.Put("/profiles/{userID}/status", cfg.AdminHandler.UpdateStatus)
			r.Get("/dashboard-stats", cfg.AdminHandler.DashboardStats)
		})
	})

	return r
}
