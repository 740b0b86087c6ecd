package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	DatabaseURL string
	ListenAddr  string

	// AdminTokenHash is a bcrypt hash of the token accepted on /admin and
	// /metrics. If empty, admin routes are not mounted.
	AdminTokenHash string

	Auth     AuthConfig
	Provider ProviderConfig
	Stripe   StripeConfig

	// LimitsFile optionally points to a YAML tier-limit table. When empty
	// the built-in defaults are used.
	LimitsFile string

	// ResyncSchedule is the cron expression for the ledger resync sweep.
	ResyncSchedule string

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// AuthConfig selects how bearer tokens are verified. JWKSURL wins over
// JWTSecret when both are set.
type AuthConfig struct {
	JWTSecret string
	JWKSURL   string
	Issuer    string
	Audience  string
}

type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:    os.Getenv("APP_DATABASE_URL"),
		ListenAddr:     getenv("APP_LISTEN_ADDR", ":8080"),
		AdminTokenHash: os.Getenv("APP_ADMIN_TOKEN_HASH"),
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
			JWKSURL:   os.Getenv("AUTH_JWKS_URL"),
			Issuer:    os.Getenv("AUTH_ISSUER"),
			Audience:  getenv("AUTH_AUDIENCE", "authenticated"),
		},
		Provider: ProviderConfig{
			BaseURL: strings.TrimRight(getenv("PROVIDER_BASE_URL", "https://api.openai.com/v1"), "/"),
			APIKey:  os.Getenv("PROVIDER_API_KEY"),
			Model:   getenv("PROVIDER_MODEL", "gpt-4o-mini"),
			Timeout: 60 * time.Second,
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		LimitsFile:         os.Getenv("LIMITS_FILE"),
		ResyncSchedule:     getenv("RESYNC_SCHEDULE", "@every 30m"),
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "json"),
	}

	if v := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Provider.Timeout = time.Duration(secs) * time.Second
		}
	}

	return cfg
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	errs := []error{c.ValidateDatabase()}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		errs = append(errs, errors.New("one of AUTH_JWT_SECRET or AUTH_JWKS_URL must be set"))
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("PROVIDER_API_KEY is required"))
	}
	return errors.Join(errs...)
}

// ValidateDatabase checks APP_DATABASE_URL alone, for tools that only need
// the database.
func (c *Config) ValidateDatabase() error {
	dsn := strings.TrimSpace(c.DatabaseURL)
	if dsn == "" {
		return errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
