package oidc

import (
	"strings"

	"github.com/tendant/simple-oidc/pkg/tokengenerator"
	"github.com/tendant/simple-oidc/pkg/user"
)

// Scopes that gate claims
const (
	ScopeOpenID  = "openid"
	ScopeEmail   = "email"
	ScopeProfile = "profile"
	ScopePhone   = "phone"
)

// SupportedScopes are advertised in discovery
var SupportedScopes = []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopePhone}

// ParseScope splits a space-delimited scope string, dropping duplicates.
func ParseScope(scope string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range strings.Fields(scope) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// HasScope reports whether want is one of the entries in scope
func HasScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}

// ClaimsForScope returns the profile fields of u that scope licenses.
// Synthesized placeholder emails of federated accounts are never released.
func ClaimsForScope(u *user.User, scope string) tokengenerator.ProfileClaims {
	var p tokengenerator.ProfileClaims
	if u == nil {
		return p
	}
	if HasScope(scope, ScopeEmail) && !user.IsPlaceholderEmail(u.Email) {
		p.Email = u.Email
	}
	if HasScope(scope, ScopeProfile) {
		p.Name = u.Name
		p.Picture = u.Avatar
	}
	if HasScope(scope, ScopePhone) {
		p.PhoneNumber = u.Phone
	}
	return p
}

// UserInfoClaims builds the userinfo response body: the subject plus the
// non-empty claims licensed by scope.
func UserInfoClaims(u *user.User, scope string) map[string]interface{} {
	p := ClaimsForScope(u, scope)
	claims := map[string]interface{}{
		"sub": u.Subject,
	}
	if p.Email != "" {
		claims["email"] = p.Email
	}
	if p.Name != "" {
		claims["name"] = p.Name
	}
	if p.Picture != "" {
		claims["picture"] = p.Picture
	}
	if p.PhoneNumber != "" {
		claims["phone_number"] = p.PhoneNumber
	}
	return claims
}
