package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ValidationError names the environment variable that failed and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors reports every failed check at once so an operator can fix
// the environment in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Validator is one group of checks, usually one config section.
type Validator func() ValidationErrors

// Validate runs every validator and returns the combined errors, or nil.
func Validate(validators ...Validator) error {
	var all ValidationErrors
	for _, v := range validators {
		all = append(all, v()...)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

// CollectErrors drops the nil results of the Require* checks.
func CollectErrors(errs ...*ValidationError) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		if err != nil {
			out = append(out, *err)
		}
	}
	return out
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func RequireNonEmpty(field, value string) *ValidationError {
	if value == "" {
		return invalid(field, "is required")
	}
	return nil
}

func RequirePositive(field string, value int) *ValidationError {
	if value <= 0 {
		return invalid(field, "must be positive, got %d", value)
	}
	return nil
}

func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return invalid(field, "must be positive, got %v", value)
	}
	return nil
}

// RequireValidURL accepts absolute http and https URLs with a host.
func RequireValidURL(field, value string) *ValidationError {
	if value == "" {
		return invalid(field, "is required")
	}
	u, err := url.Parse(value)
	if err != nil {
		return invalid(field, "invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid(field, "URL must start with http:// or https://")
	}
	if u.Host == "" {
		return invalid(field, "URL must include a host")
	}
	return nil
}

func RequireHTTPSURL(field, value string) *ValidationError {
	if err := RequireValidURL(field, value); err != nil {
		return err
	}
	if !strings.HasPrefix(value, "https://") {
		return invalid(field, "must use HTTPS")
	}
	return nil
}

func RequireValidPort(field string, value uint16) *ValidationError {
	if value == 0 {
		return invalid(field, "port must be between 1 and 65535")
	}
	return nil
}

func RequireOneOf(field, value string, allowed []string) *ValidationError {
	if !slices.Contains(allowed, value) {
		return invalid(field, "must be one of %v, got %q", allowed, value)
	}
	return nil
}

// RequireMinLength never echoes the value; it is used for secrets.
func RequireMinLength(field, value string, minLength int) *ValidationError {
	if len(value) < minLength {
		return invalid(field, "must be at least %d characters", minLength)
	}
	return nil
}

func RequireNonEmptySlice(field string, value []string) *ValidationError {
	if len(value) == 0 {
		return invalid(field, "must contain at least one value")
	}
	return nil
}

// WhenSet runs check only for optional settings that were provided.
func WhenSet(value string, check func() *ValidationError) *ValidationError {
	if value == "" {
		return nil
	}
	return check()
}
