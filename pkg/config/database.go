package config

import (
	"fmt"
	"time"
)

// Storage drivers
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// StorageConfig selects the persistence backend for clients, users and codes
type StorageConfig struct {
	Driver    string        `env:"STORAGE_DRIVER" env-default:"memory"`
	OpTimeout time.Duration `env:"STORAGE_OP_TIMEOUT" env-default:"5s"`

	Postgres DatabaseConfig

	SQLitePath string `env:"SQLITE_PATH" env-default:"simple-oidc.db"`

	// ClientSecretKey encrypts client secrets at rest in the SQL stores
	ClientSecretKey string `env:"CLIENT_SECRET_ENCRYPTION_KEY" env-default:"change-me-client-secret-key"`
}

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `env:"OIDC_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"OIDC_PG_PORT" env-default:"5432"`
	Database string `env:"OIDC_PG_DATABASE" env-default:"oidc_db"`
	User     string `env:"OIDC_PG_USER" env-default:"oidc"`
	Password string `env:"OIDC_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"OIDC_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

func (s StorageConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequireOneOf("STORAGE_DRIVER", s.Driver, []string{StorageMemory, StoragePostgres, StorageSQLite}),
		RequirePositiveDuration("STORAGE_OP_TIMEOUT", s.OpTimeout),
	)
	if s.Driver != StorageMemory {
		errs = append(errs, CollectErrors(RequireMinLength("CLIENT_SECRET_ENCRYPTION_KEY", s.ClientSecretKey, 16))...)
	}
	switch s.Driver {
	case StoragePostgres:
		errs = append(errs, CollectErrors(
			RequireNonEmpty("OIDC_PG_HOST", s.Postgres.Host),
			RequireValidPort("OIDC_PG_PORT", s.Postgres.Port),
			RequireNonEmpty("OIDC_PG_DATABASE", s.Postgres.Database),
		)...)
	case StorageSQLite:
		errs = append(errs, CollectErrors(RequireNonEmpty("SQLITE_PATH", s.SQLitePath))...)
	}
	return errs
}
