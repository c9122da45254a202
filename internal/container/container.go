package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	database "github.com/FACorreiaa/gigs-profile-service/app/db"
	appMiddleware "github.com/FACorreiaa/gigs-profile-service/app/middleware"
	"github.com/FACorreiaa/gigs-profile-service/config"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/admin"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/auth"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/drafts"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/profiles"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/storage"
	"github.com/FACorreiaa/gigs-profile-service/internal/events"
	"github.com/FACorreiaa/gigs-profile-service/internal/router"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Publisher   events.Publisher
	RateLimiter *appMiddleware.IPRateLimiter

	AuthHandler    *auth.HandlerImpl
	DraftHandler   *drafts.HandlerImpl
	ProfileHandler *profiles.HandlerImpl
	StorageHandler *storage.HandlerImpl
	AdminHandler   *admin.HandlerImpl

	uploadsDir string
}

// NewContainer initializes and returns a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("generating database config: %w", err)
	}

	pool, err := database.Init(dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing database pool: %w", err)
	}

	c := &Container{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Publisher:   events.NewPublisher(cfg.Kafka, logger),
		RateLimiter: appMiddleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger),
	}

	if addr := cfg.Repositories.Redis.Addr; addr != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Repositories.Redis.Password,
			DB:       cfg.Repositories.Redis.DB,
		})
	}

	objectStore, err := storage.NewObjectStorage(cfg.Storage)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing object storage: %w", err)
	}
	if local, ok := objectStore.(*storage.LocalStorage); ok {
		c.uploadsDir = local.Dir()
	}

	// Repositories
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	draftRepo := drafts.NewPostgresDraftRepo(pool, logger)
	profileRepo := profiles.NewPostgresProfileRepo(pool, logger)

	// Services
	authService := auth.NewAuthService(authRepo, cfg, logger)
	draftService := drafts.NewDraftService(draftRepo, logger)
	profileService := profiles.NewProfileService(profileRepo, c.Publisher, logger)
	adminService := admin.NewAdminService(profileRepo, admin.NewPostgresStatsRepo(pool, logger), profileService, logger)

	quota := storage.NewQuota(c.Redis, cfg.Storage.DailyQuota, logger)
	uploader := storage.NewUploader(objectStore, quota, cfg.Storage.Buckets, cfg.Storage.MaxUploadBytes, logger)

	// Handlers
	c.AuthHandler = auth.NewAuthHandlerImpl(authService, cfg.JWT, logger)
	c.DraftHandler = drafts.NewHandlerImpl(draftService, logger)
	c.ProfileHandler = profiles.NewHandlerImpl(profileService, uploader, maxFormBytes(cfg.Storage.MaxUploadBytes), logger)
	c.StorageHandler = storage.NewHandlerImpl(uploader, cfg.Storage.MaxUploadBytes, logger)
	c.AdminHandler = admin.NewHandlerImpl(adminService, logger)

	return c, nil
}

// RouterConfig collects the handlers and middleware the router mounts.
func (c *Container) RouterConfig() *router.Config {
	return &router.Config{
		AuthHandler:            c.AuthHandler,
		DraftHandler:           c.DraftHandler,
		ProfileHandler:         c.ProfileHandler,
		StorageHandler:         c.StorageHandler,
		AdminHandler:           c.AdminHandler,
		AuthenticateMiddleware: auth.Authenticate(c.Logger, c.Config.JWT),
		AdminOnlyMiddleware:    auth.RequireRole(c.Logger, types.RoleAdmin),
		AllowedOrigins:         c.Config.Server.AllowedOrigins,
		UploadsDir:             c.uploadsDir,
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Warn("Failed to close event publisher", slog.Any("error", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// a multipart profile form may carry one file per document field
func maxFormBytes(perFile int64) int64 {
	if perFile <= 0 {
		return 0
	}
	return perFile*9 + 1<<20
}
