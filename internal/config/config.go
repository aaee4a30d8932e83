package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr           = ":8000"
	defaultDatabaseURL        = "vidtube.db"
	defaultSessionBackend     = "db"
	defaultRedisURL           = "redis://localhost:6379/0"
	defaultAccessTTL          = "15m"
	defaultRefreshTTL         = "240h"
	defaultTokenIssuer        = "vidtube"
	defaultBcryptCost         = "12"
	defaultCookieSecure       = "false"
	defaultCookieSameSite     = "Lax"
	defaultCookiePath         = "/"
	defaultLoginRatePerMinute = "10"
	defaultLoginRateBurst     = "5"
	defaultStoreRetryAttempts = "2"
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
	defaultAccessSecret       = "change-me-access-token-secret"
	defaultRefreshSecret      = "change-me-refresh-token-secret"
)

const (
	SessionBackendDB    = "db"
	SessionBackendRedis = "redis"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseURL    string
	SessionBackend string
	RedisURL       string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	TokenIssuer        string
	BcryptCost         int

	CookieSecure   bool
	CookieSameSite string
	CookiePath     string
	CORSOrigins    []string

	LoginRatePerMinute int
	LoginRateBurst     int

	RevokeSessionOnPasswordChange bool
	RevokeSessionOnRefreshReuse   bool
	StoreRetryAttempts            int

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment. A .env file in the
// working directory (or the path in ENV_FILE) is applied first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", defaultSessionBackend)))
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", defaultRedisURL))

	cfg.AccessTokenSecret = strings.TrimSpace(getEnv("ACCESS_TOKEN_SECRET", defaultAccessSecret))
	cfg.RefreshTokenSecret = strings.TrimSpace(getEnv("REFRESH_TOKEN_SECRET", defaultRefreshSecret))
	cfg.TokenIssuer = strings.TrimSpace(getEnv("TOKEN_ISSUER", defaultTokenIssuer))

	var err error
	if cfg.AccessTokenTTL, err = parseDurationEnv("ACCESS_TOKEN_TTL", defaultAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = parseDurationEnv("REFRESH_TOKEN_TTL", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = parseIntEnv("BCRYPT_COST", defaultBcryptCost); err != nil {
		return nil, err
	}
	if cfg.LoginRatePerMinute, err = parseIntEnv("LOGIN_RATE_PER_MINUTE", defaultLoginRatePerMinute); err != nil {
		return nil, err
	}
	if cfg.LoginRateBurst, err = parseIntEnv("LOGIN_RATE_BURST", defaultLoginRateBurst); err != nil {
		return nil, err
	}
	if cfg.StoreRetryAttempts, err = parseIntEnv("STORE_RETRY_ATTEMPTS", defaultStoreRetryAttempts); err != nil {
		return nil, err
	}

	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGIN"))

	cfg.RevokeSessionOnPasswordChange = parseBoolEnv("REVOKE_SESSION_ON_PASSWORD_CHANGE", "false")
	cfg.RevokeSessionOnRefreshReuse = parseBoolEnv("REVOKE_SESSION_ON_REFRESH_REUSE", "false")

	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.LogFormat = strings.TrimSpace(getEnv("LOG_FORMAT", defaultLogFormat))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProd reports whether the service runs with production hardening.
func (c *Config) IsProd() bool {
	return isProdLike(c.AppEnv)
}

// SameSite converts CookieSameSite into the net/http constant.
func (c *Config) SameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be > 0")
	}
	if cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL")
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be within [4, 31]")
	}
	switch cfg.SessionBackend {
	case SessionBackendDB:
	case SessionBackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be one of: db, redis")
	}
	if cfg.LoginRatePerMinute <= 0 || cfg.LoginRateBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE and LOGIN_RATE_BURST must be > 0")
	}
	if cfg.StoreRetryAttempts < 0 || cfg.StoreRetryAttempts > 5 {
		return fmt.Errorf("STORE_RETRY_ATTEMPTS must be within [0, 5]")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.AccessTokenSecret, defaultAccessSecret) {
			return fmt.Errorf("in prod/release ACCESS_TOKEN_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenSecret, defaultRefreshSecret) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_SECRET must be set and not default")
		}
		if len(cfg.AccessTokenSecret) < 32 || len(cfg.RefreshTokenSecret) < 32 {
			return fmt.Errorf("in prod/release token secrets must be at least 32 bytes")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
