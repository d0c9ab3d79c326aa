// Package config loads simple-oidc configuration from environment variables.
//
// Values are read with cleanenv into a tagged Config struct, then checked by
// Validate, which reports every problem at once:
//
//	cfg, err := config.Load()
//	if err != nil {
//		slog.Error("Invalid configuration", "err", err)
//		os.Exit(1)
//	}
//
// Secrets (JWT_SECRET, client secret encryption key, IdP secrets) are never logged.
package config
