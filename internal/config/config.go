// Package config loads the portal configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Directory backends.
const (
	BackendHTTP     = "http"
	BackendSurreal  = "surreal"
	BackendPostgres = "postgres"
	BackendFile     = "file"
)

// Config holds all configuration for the application.
type Config struct {
	Addr       string `env:"SERVER_ADDR" envDefault:":8080"`
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"debug"`

	SessionSecret     string        `env:"SESSION_SECRET"`
	// SessionDir switches to filesystem-backed sessions when set.
	SessionDir        string        `env:"SESSION_DIR"`
	SessionDurableTTL time.Duration `env:"SESSION_DURABLE_TTL" envDefault:"720h"`
	LoginRatePerMin   int           `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`

	FirebaseAPIKey  string        `env:"FIREBASE_API_KEY"`
	FirebaseBaseURL string        `env:"FIREBASE_BASE_URL"`
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	DirectoryBackend string        `env:"DIRECTORY_BACKEND" envDefault:"http"`
	DirectoryTimeout time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"10s"`
	DirectoryURL     string        `env:"DIRECTORY_URL"`
	DirectorySecret  string        `env:"DIRECTORY_SECRET"`
	DirectoryRoot    string        `env:"DIRECTORY_FILE_ROOT" envDefault:"./data/users"`
	DatabaseURL      string        `env:"DATABASE_URL"`

	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	ServiceName    string `env:"TRACING_SERVICE_NAME" envDefault:"ffland-portal"`
	ZipkinURL      string `env:"ZIPKIN_URL" envDefault:"http://localhost:9411/api/v2/spans"`

	SurrealURL  string `env:"SURREAL_URL"`
	SurrealUser string `env:"SURREAL_USER"`
	SurrealPass string `env:"SURREAL_PASS"`
	SurrealNS   string `env:"SURREAL_NS"`
	SurrealDB   string `env:"SURREAL_DB"`
}

// New loads an optional .env file and parses the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return Parse()
}

// Parse reads the environment into a Config and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// GoogleRedirectURL is the OAuth callback registered with Google.
func (c *Config) GoogleRedirectURL() string {
	return c.AppBaseURL + "/portal/login/google/callback"
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.AppBaseURL, "https://")
}

// Validate checks that the settings required by the chosen backends are set.
func (c *Config) Validate() error {
	var errs []error
	if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if c.FirebaseAPIKey == "" {
		errs = append(errs, errors.New("FIREBASE_API_KEY is required"))
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}

	if c.TracingEnabled && c.ZipkinURL == "" {
		errs = append(errs, errors.New("ZIPKIN_URL is required when TRACING_ENABLED is set"))
	}

	switch c.DirectoryBackend {
	case BackendHTTP:
		if c.DirectoryURL == "" || c.DirectorySecret == "" {
			errs = append(errs, errors.New("DIRECTORY_URL and DIRECTORY_SECRET are required for the http directory"))
		}
	case BackendSurreal:
		if c.SurrealURL == "" || c.SurrealNS == "" || c.SurrealDB == "" {
			errs = append(errs, errors.New("SURREAL_URL, SURREAL_NS and SURREAL_DB are required for the surreal directory"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres directory"))
		}
	case BackendFile:
		if c.DirectoryRoot == "" {
			errs = append(errs, errors.New("DIRECTORY_FILE_ROOT is required for the file directory"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DIRECTORY_BACKEND %q", c.DirectoryBackend))
	}
	return errors.Join(errs...)
}
