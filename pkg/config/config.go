package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full service configuration, read from environment variables.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	JWT        JWTConfig
	Code       CodeConfig
	WeChat     WeChatConfig
	OAuth2IdP  OAuth2ProviderConfig
	SeedClient SeedClientConfig
	SeedUser   SeedUserConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR" env-default:":4000"`
	BaseURL         string        `env:"BASE_URL" env-default:"http://localhost:4000"`
	Environment     string        `env:"APP_ENV" env-default:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
}

// CodeConfig holds authorization code lifecycle settings. An empty
// PlaceholderSecret is derived from StateSecret.
type CodeConfig struct {
	TTL               time.Duration `env:"AUTH_CODE_TTL" env-default:"10m"`
	CleanupInterval   time.Duration `env:"AUTH_CODE_CLEANUP_INTERVAL" env-default:"1m"`
	StateSecret       string        `env:"FEDERATION_STATE_SECRET" env-default:""`
	PlaceholderSecret string        `env:"FEDERATION_PLACEHOLDER_SECRET" env-default:""`
}

// SeedClientConfig registers one client at startup when ClientID is set.
// Useful for the in-memory store and local development.
type SeedClientConfig struct {
	ClientID     string   `env:"SEED_CLIENT_ID" env-default:""`
	ClientSecret string   `env:"SEED_CLIENT_SECRET" env-default:""`
	ClientName   string   `env:"SEED_CLIENT_NAME" env-default:"Seed Client"`
	RedirectURIs []string `env:"SEED_CLIENT_REDIRECT_URIS" env-separator:","`
}

// SeedUserConfig provisions one local password account at startup when an
// email or phone is set
type SeedUserConfig struct {
	Email    string `env:"SEED_USER_EMAIL" env-default:""`
	Phone    string `env:"SEED_USER_PHONE" env-default:""`
	Name     string `env:"SEED_USER_NAME" env-default:"Administrator"`
	Password string `env:"SEED_USER_PASSWORD" env-default:""`
	UserType string `env:"SEED_USER_TYPE" env-default:"admin"`
}

// Enabled reports whether a seed user is configured
func (s SeedUserConfig) Enabled() bool {
	return s.Email != "" || s.Phone != ""
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production" || c.Server.Environment == "prod"
}

// Validate checks the combined configuration.
func (c *Config) Validate() error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireValidURL("BASE_URL", c.Server.BaseURL),
				RequirePositiveDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout),
				RequirePositiveDuration("AUTH_CODE_TTL", c.Code.TTL),
				RequirePositiveDuration("AUTH_CODE_CLEANUP_INTERVAL", c.Code.CleanupInterval),
			)
		},
		func() ValidationErrors {
			if !c.IsProduction() {
				return nil
			}
			return CollectErrors(RequireHTTPSURL("BASE_URL", c.Server.BaseURL))
		},
		func() ValidationErrors {
			return CollectErrors(
				WhenSet(c.SeedClient.ClientID, func() *ValidationError {
					return RequireNonEmptySlice("SEED_CLIENT_REDIRECT_URIS", c.SeedClient.RedirectURIs)
				}),
			)
		},
		func() ValidationErrors {
			if !c.SeedUser.Enabled() {
				return nil
			}
			return CollectErrors(RequireMinLength("SEED_USER_PASSWORD", c.SeedUser.Password, 8))
		},
		c.RateLimit.validate,
		c.Storage.validate,
		func() ValidationErrors { return c.JWT.validate(c.IsProduction()) },
		c.WeChat.validate,
		c.OAuth2IdP.validate,
	)
}
