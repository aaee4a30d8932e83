package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"vidtube/internal/config"
	"vidtube/internal/database"
	"vidtube/internal/pkg/logger"
	"vidtube/internal/repository"
)

// Clears refresh tokens stored on user rows once they have expired. Redis
// sessions expire on their own, so there is nothing to do for that backend.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Env: cfg.AppEnv})

	if cfg.SessionBackend == config.SessionBackendRedis {
		log.Info().Msg("redis session backend, nothing to clean")
		return
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := cleanup(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("cleanup sessions failed")
	}
}

func cleanup(ctx context.Context, db *gorm.DB, log zerolog.Logger) (int64, error) {
	n, err := repository.NewSessionRepository(db).DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("sessions", n).Msg("session cleanup completed")
	return n, nil
}
