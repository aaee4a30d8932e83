package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"vidtube/internal/config"
	"vidtube/internal/database"
	"vidtube/internal/modules/auth"
	"vidtube/internal/pkg/logger"
	"vidtube/internal/pkg/password"
	"vidtube/internal/repository"
)

const demoPassword = "Secret123!"

var demoUsers = []struct {
	username string
	fullName string
}{
	{"alice", "Alice Liddell"},
	{"bob", "Bob Builder"},
	{"carol", "Carol Danvers"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Env: cfg.AppEnv})
	if cfg.IsProd() {
		log.Fatal().Msg("refusing to seed a production database")
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	log.Info().Msg("running migrations")
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hasher")
	}
	creds := auth.NewCredentialStore(repository.NewUserRepository(db), hasher)

	if err := seed(context.Background(), creds, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Str("password", demoPassword).Msg("seed completed")
}

// seed registers the demo users, skipping those that already exist.
func seed(ctx context.Context, creds *auth.CredentialStore, log zerolog.Logger) error {
	for _, d := range demoUsers {
		u, err := creds.Register(ctx, auth.RegisterInput{
			Username:  d.username,
			Email:     d.username + "@vidtube.local",
			FullName:  d.fullName,
			Password:  demoPassword,
			AvatarURL: fmt.Sprintf("https://cdn.vidtube.local/avatars/%s.png", d.username),
		})
		switch {
		case errors.Is(err, auth.ErrConflict):
			log.Info().Str("username", d.username).Msg("user exists, skipping")
		case err != nil:
			return fmt.Errorf("seed %s: %w", d.username, err)
		default:
			log.Info().Str("username", u.Username).Str("id", u.ID).Msg("user created")
		}
	}
	return nil
}
