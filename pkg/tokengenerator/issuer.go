package tokengenerator

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// DefaultTokenExpiry applies to both access and identity tokens
const DefaultTokenExpiry = time.Hour

// ProfileClaims are the user fields an identity token may carry. Callers fill
// only the fields the granted scope licenses.
type ProfileClaims struct {
	Email       string
	Name        string
	Picture     string
	PhoneNumber string
}

// Issuer mints access and identity tokens and validates bearer tokens
type Issuer struct {
	generator TokenGenerator
	issuer    string
	expiry    time.Duration
	now       func() time.Time
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithExpiry sets the lifetime of issued tokens
func WithExpiry(expiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		if expiry > 0 {
			i.expiry = expiry
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an Issuer that stamps iss with issuer
func NewIssuer(generator TokenGenerator, issuer string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		generator: generator,
		issuer:    issuer,
		expiry:    DefaultTokenExpiry,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Expiry returns the configured token lifetime
func (i *Issuer) Expiry() time.Duration {
	return i.expiry
}

// Algorithm returns the signing algorithm advertised in discovery
func (i *Issuer) Algorithm() string {
	return i.generator.Algorithm()
}

func (i *Issuer) registered(subject, audience string) (jwt.RegisteredClaims, time.Time) {
	now := i.now().UTC()
	exp := now.Add(i.expiry)
	return jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.New().String(),
	}, exp
}

// IssueAccessToken mints an access token for subject, audience being the client id
func (i *Issuer) IssueAccessToken(subject, audience, scope, userType string) (string, time.Time, error) {
	rc, exp := i.registered(subject, audience)
	claims := &Claims{
		Scope:            scope,
		UserType:         userType,
		TokenUse:         TokenUseAccess,
		RegisteredClaims: rc,
	}
	ss, err := i.generator.GenerateToken(claims)
	if err != nil {
		slog.Error("Failed to sign access token", "subject", subject, "err", err)
		return "", time.Time{}, apperrors.InternalWrap(err, "failed to sign access token")
	}
	return ss, exp, nil
}

// IssueIDToken mints an identity token carrying the given profile claims
func (i *Issuer) IssueIDToken(subject, audience string, profile ProfileClaims) (string, time.Time, error) {
	rc, exp := i.registered(subject, audience)
	claims := &Claims{
		TokenUse:         TokenUseID,
		Email:            profile.Email,
		Name:             profile.Name,
		Picture:          profile.Picture,
		PhoneNumber:      profile.PhoneNumber,
		RegisteredClaims: rc,
	}
	ss, err := i.generator.GenerateToken(claims)
	if err != nil {
		slog.Error("Failed to sign id token", "subject", subject, "err", err)
		return "", time.Time{}, apperrors.InternalWrap(err, "failed to sign id token")
	}
	return ss, exp, nil
}

// Validate checks signature, issuer and expiry. The audience is not checked:
// the userinfo endpoint is shared by all clients.
func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, apperrors.New(apperrors.ErrCodeTokenInvalid, "token is empty")
	}
	claims, err := i.generator.ParseToken(tokenStr,
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenExpired, "token expired")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, "invalid token")
	}
	if claims.Subject == "" {
		return nil, apperrors.New(apperrors.ErrCodeTokenInvalid, "token has no subject")
	}
	return claims, nil
}
