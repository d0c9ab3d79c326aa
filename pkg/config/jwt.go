package config

import "time"

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "very-secure-jwt-secret"

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret      string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer      string        `env:"JWT_ISSUER" env-default:"http://localhost:4000"`
	TokenExpiry time.Duration `env:"TOKEN_EXPIRY" env-default:"1h"`
	// RSAKeyFile switches signing to RS256 when set; the public key is then
	// published on the JWKS endpoint.
	RSAKeyFile string `env:"JWT_RSA_KEY_FILE" env-default:""`
	RSAKeyID   string `env:"JWT_RSA_KEY_ID" env-default:""` // empty derives the kid from the key fingerprint
	// RSAKeyGenerate writes a fresh 2048-bit key to RSAKeyFile when it is missing
	RSAKeyGenerate bool `env:"JWT_RSA_KEY_GENERATE" env-default:"false"`
}

func (j JWTConfig) validate(production bool) ValidationErrors {
	errs := CollectErrors(
		RequireNonEmpty("JWT_ISSUER", j.Issuer),
		RequirePositiveDuration("TOKEN_EXPIRY", j.TokenExpiry),
	)
	if j.RSAKeyFile == "" {
		errs = append(errs, CollectErrors(RequireMinLength("JWT_SECRET", j.Secret, 16))...)
		if production && j.Secret == DefaultJWTSecret {
			errs = append(errs, ValidationError{Field: "JWT_SECRET", Message: "must be changed in production"})
		}
	}
	return errs
}
