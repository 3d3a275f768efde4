package app

import (
	"context"
	"fmt"

	"github.com/msc-edu/cms-api/auth"
	"github.com/msc-edu/cms-api/config"
	"github.com/msc-edu/cms-api/handlers"
	"github.com/msc-edu/cms-api/identity"
	"github.com/msc-edu/cms-api/middleware"
	"github.com/msc-edu/cms-api/models"
	"github.com/msc-edu/cms-api/repositories"
	"github.com/msc-edu/cms-api/repositories/postgres"
	"github.com/msc-edu/cms-api/services"
	"github.com/msc-edu/cms-api/services/media"
	"github.com/msc-edu/cms-api/storage"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Profiles  repositories.ProfileRepository
	Media     repositories.MediaRepository
	TxManager repositories.TransactionManager

	// Upstreams
	Identity *identity.Client
	Storage  *storage.Client

	// Auth
	Verifier       *auth.Verifier
	AuthMiddleware *middleware.AuthMiddleware
	CORS           *middleware.Negotiator

	// Services
	AuthService  *services.AuthService
	MediaService *media.Service

	// Handlers
	AuthHandler   *handlers.AuthHandler
	MediaHandler  *handlers.MediaHandler
	HealthHandler *handlers.HealthHandler
}

// NewDependencies opens the database and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Database.InitSchema {
		if err := factory.GetDB().InitSchema(ctx); err != nil {
			_ = factory.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	deps := Build(cfg, factory, logger)
	logger.Info("all dependencies initialized successfully",
		zap.String("environment", cfg.Environment),
		zap.String("auth_verify_mode", cfg.Auth.VerifyMode))
	return deps, nil
}

// Build wires every component over an already opened repository factory
func Build(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) *Dependencies {
	d := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	d.initRepositories()
	d.initAuth(cfg)
	d.initMedia(cfg)
	d.initHandlers(cfg)

	return d
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Profiles = repos.Profiles
	d.Media = repos.Media
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	d.CORS = middleware.NewNegotiator(middleware.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Development:    cfg.IsDevelopment(),
		MaxAge:         cfg.CORS.MaxAge,
	}, d.Logger)

	// interface values stay untyped nil when the provider is not configured
	var authenticator services.PasswordAuthenticator
	var users auth.UserResolver

	if cfg.Supabase.URL != "" {
		d.Identity = identity.NewClient(identity.Config{
			URL:         cfg.Supabase.URL,
			AnonKey:     cfg.Supabase.AnonKey,
			HTTPTimeout: cfg.Supabase.HTTPTimeout,
		})
		authenticator = d.Identity
		users = d.Identity
	} else {
		d.Logger.Warn("identity provider not configured, login and token verification will fail")
	}

	if cfg.Auth.VerifyMode == config.VerifyModeJWT {
		users = identity.NewJWTVerifier(identity.JWTConfig{
			Secret:      cfg.Supabase.JWTSecret,
			JWKSURL:     cfg.Supabase.JWKSURL(),
			HTTPTimeout: cfg.Supabase.HTTPTimeout,
		})
	}

	d.Verifier = auth.NewVerifier(users, d.Profiles, auth.VerifierConfig{
		Timeout:     cfg.Auth.VerifyTimeout,
		DefaultRole: models.Role(cfg.Auth.DefaultRole),
	}, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Verifier, d.Logger)
	d.AuthService = services.NewAuthService(authenticator, d.Verifier, d.Profiles, d.Logger)

	d.Logger.Info("auth initialized", zap.String("verify_mode", cfg.Auth.VerifyMode))
}

func (d *Dependencies) initMedia(cfg *config.Config) {
	if cfg.Supabase.URL == "" || cfg.Supabase.ServiceRoleKey == "" {
		d.Logger.Warn("storage not configured, uploads and deletes will fail")
	}
	d.Storage = storage.NewClient(storage.Config{
		URL:            cfg.Supabase.URL,
		ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
		Bucket:         cfg.Storage.Bucket,
		CacheControl:   cfg.Storage.CacheControl,
		HTTPTimeout:    cfg.Supabase.HTTPTimeout,
	}, d.Logger)

	d.MediaService = media.NewService(d.Storage, d.Media, d.TxManager, media.Config{
		MaxFileSize:      cfg.Storage.MaxFileSize,
		AllowedMIMETypes: cfg.Storage.AllowedMIMETypes,
	}, d.Logger)
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	responder := handlers.ErrorResponder{
		Logger:       d.Logger,
		ExposeErrors: cfg.IsDevelopment(),
	}

	var db handlers.HealthChecker
	if d.DB != nil {
		db = d.DB
	}

	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, responder, d.Logger)
	d.MediaHandler = handlers.NewMediaHandler(d.MediaService, cfg.Storage.MaxRequestSize, responder, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(db, cfg.Version, cfg.Environment, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
