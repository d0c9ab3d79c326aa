package config

import "fmt"

// RateLimitConfig contains per-IP rate limiting settings for the credential
// and token endpoints
type RateLimitConfig struct {
	Enabled bool    `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	Rate    float64 `env:"RATE_LIMIT_RPS" env-default:"1"` // requests per second per IP
	Burst   int     `env:"RATE_LIMIT_BURST" env-default:"10"`
	// TrustProxyHeaders reads the client IP from X-Forwarded-For
	TrustProxyHeaders bool `env:"RATE_LIMIT_TRUST_PROXY" env-default:"false"`
}

func (r RateLimitConfig) validate() ValidationErrors {
	if !r.Enabled {
		return nil
	}
	errs := CollectErrors(RequirePositive("RATE_LIMIT_BURST", r.Burst))
	if r.Rate <= 0 {
		errs = append(errs, ValidationError{Field: "RATE_LIMIT_RPS", Message: fmt.Sprintf("must be positive, got %v", r.Rate)})
	}
	return errs
}
