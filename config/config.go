package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full environment surface of the service.
type Config struct {
	Port           int      `env:"PORT" envDefault:"3000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Secret signing host keys. Must be set outside dev.
	SessionSecret string `env:"SESSION_SECRET" envDefault:"dev-salt"`

	// Optional shared token for gateway-fronted deployments; empty means
	// the guard is off.
	ServiceToken string `env:"SERVICE_TOKEN"`

	// Idle sessions are force-ended after this long.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"2h"`

	// Optional Postgres DSN for the session archive. Empty disables it.
	DatabaseURL string `env:"DATABASE_URL"`

	// Client-side auth config served to the frontend.
	AzureClientID  string `env:"AZURE_CLIENT_ID"`
	AzureTenantID  string `env:"AZURE_TENANT_ID" envDefault:"common"`
	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	// Default storage provider for joins that don't name one.
	DefaultProvider string `env:"DEFAULT_PROVIDER" envDefault:"drive"`

	// Probe delegated tokens against the provider at join time.
	ValidateTokens bool `env:"VALIDATE_PROVIDER_TOKENS" envDefault:"false"`

	// S3-compatible bucket provider (hosted "junk drawer" sessions).
	BucketAccountID    string `env:"BUCKET_ACCOUNT_ID"`
	BucketAccessKey    string `env:"BUCKET_ACCESS_KEY_ID"`
	BucketAccessSecret string `env:"BUCKET_ACCESS_KEY_SECRET"`
	BucketName         string `env:"BUCKET_NAME"`
	BucketPrefix       string `env:"BUCKET_CLEANUP_PREFIX" envDefault:"cleanup/"`
}

// Load reads .env (when present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
