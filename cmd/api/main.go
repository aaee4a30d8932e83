package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"vidtube/internal/config"
	"vidtube/internal/database"
	"vidtube/internal/middleware"
	"vidtube/internal/modules/auth"
	jwtsvc "vidtube/internal/pkg/jwt"
	"vidtube/internal/pkg/logger"
	"vidtube/internal/pkg/password"
	"vidtube/internal/repository"
	"vidtube/internal/server"
	"vidtube/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Env: cfg.AppEnv})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(db)
	checks := map[string]server.HealthCheck{"database": pingDB(db)}

	var sessions auth.SessionStore
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client, err := session.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		store := session.NewRedisStore(client, "")
		checks["redis"] = func(ctx context.Context) error {
			_, err := store.Ping(ctx)
			return err
		}
		sessions = store
		log.Info().Msg("sessions stored in redis")
	default:
		sessions = repository.NewSessionRepository(db)
		log.Info().Msg("sessions stored in database")
	}

	tokens, err := jwtsvc.New(jwtsvc.Config{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.TokenIssuer,
	})
	if err != nil {
		return err
	}
	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	creds := auth.NewCredentialStore(userRepo, hasher)
	authService := auth.NewService(creds, tokens, sessions, log, auth.Options{
		RevokeSessionOnPasswordChange: cfg.RevokeSessionOnPasswordChange,
		RevokeSessionOnRefreshReuse:   cfg.RevokeSessionOnRefreshReuse,
		StoreRetryAttempts:            cfg.StoreRetryAttempts,
	})
	authHandler := auth.NewHandler(authService, auth.CookieOptions{
		Secure:   cfg.CookieSecure,
		SameSite: cfg.SameSite(),
		Path:     cfg.CookiePath,
	}, log)

	router := server.NewRouter(server.Deps{
		Auth:   authHandler,
		Tokens: tokens,
		Users:  userRepo,
		Log:    log,
		CORS:   cfg.CORSOrigins,
		LoginRate: middleware.RateLimitConfig{
			PerMinute: cfg.LoginRatePerMinute,
			Burst:     cfg.LoginRateBurst,
		},
		Checks: checks,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func pingDB(db *gorm.DB) server.HealthCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
