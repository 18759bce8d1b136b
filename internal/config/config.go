package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

type R2Config struct {
	AccountID       string `env:"R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	BucketName      string `env:"R2_BUCKET_NAME"`
	Region          string `env:"R2_REGION" envDefault:"auto"`
	PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`
	// Endpoint overrides the account-derived R2 endpoint (MinIO, localstack).
	Endpoint string `env:"R2_ENDPOINT"`
}

type TokenConfig struct {
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
}

type UploadConfig struct {
	Dir     string `env:"UPLOAD_DIR" envDefault:"./public/temp"`
	MaxSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`
}

type Config struct {
	DB_URL         string   `env:"DB_URL"`
	Port           string   `env:"PORT" envDefault:"8080"`
	Environment    string   `env:"ENV" envDefault:"development"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	Tokens         TokenConfig
	Uploads        UploadConfig
	R2             R2Config
}

const devTokenSecret = "not-so-secret-now-is-it?"

// Load reads the optional env file and parses the process environment.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("env file not loaded", "file", envFile, "err", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if !cfg.IsProduction() {
		if cfg.Tokens.AccessSecret == "" {
			cfg.Tokens.AccessSecret = devTokenSecret
		}
		if cfg.Tokens.RefreshSecret == "" {
			cfg.Tokens.RefreshSecret = devTokenSecret + "-refresh"
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Tokens.AccessSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.Tokens.RefreshSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token expiry must be positive"))
	}
	if c.Tokens.RefreshTTL < c.Tokens.AccessTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRY must not be shorter than ACCESS_TOKEN_EXPIRY"))
	}
	if c.Uploads.MaxSize <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

// SameSite is shared by every cookie the server sets and clears.
func (c Config) SameSite() http.SameSite {
	if c.IsProduction() {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) CorsConfig() cors.Options {
	return cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}
