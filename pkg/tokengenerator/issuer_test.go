package tokengenerator

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func generators(t *testing.T) map[string]TokenGenerator {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return map[string]TokenGenerator{
		"HS256": NewJwtTokenGenerator(testSecret),
		"RS256": NewRSATokenGenerator(key, "k1"),
	}
}

func TestIssuerRoundTrip(t *testing.T) {
	for alg, gen := range generators(t) {
		t.Run(alg, func(t *testing.T) {
			issuer := NewIssuer(gen, "http://localhost:4000")
			assert.Equal(t, alg, issuer.Algorithm())

			token, exp, err := issuer.IssueAccessToken("u1", "app", "openid email", "customer")
			require.NoError(t, err)
			assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

			claims, err := issuer.Validate(token)
			require.NoError(t, err)
			assert.Equal(t, "u1", claims.Subject)
			assert.Equal(t, jwt.ClaimStrings{"app"}, claims.Audience)
			assert.Equal(t, "openid email", claims.Scope)
			assert.Equal(t, "customer", claims.UserType)
			assert.Equal(t, TokenUseAccess, claims.TokenUse)
			assert.Equal(t, "http://localhost:4000", claims.Issuer)
			assert.NotEmpty(t, claims.ID)
		})
	}
}

func TestIssueIDToken(t *testing.T) {
	issuer := NewIssuer(NewJwtTokenGenerator(testSecret), "iss")
	token, _, err := issuer.IssueIDToken("u1", "app", ProfileClaims{Email: "a@example.com"})
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, TokenUseID, claims.TokenUse)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Empty(t, claims.Name)
	assert.Empty(t, claims.Scope)
}

func TestValidateFailures(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	issuer := NewIssuer(NewJwtTokenGenerator(testSecret), "iss",
		WithExpiry(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	token, _, err := issuer.IssueAccessToken("u1", "app", "openid", "customer")
	require.NoError(t, err)

	t.Run("Expired", func(t *testing.T) {
		now = base.Add(2 * time.Minute)
		defer func() { now = base }()
		_, err := issuer.Validate(token)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenExpired))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewIssuer(NewJwtTokenGenerator("another-secret-another-secret"), "iss",
			WithClock(func() time.Time { return now }))
		_, err := other.Validate(token)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid))
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		other := NewIssuer(NewJwtTokenGenerator(testSecret), "someone-else",
			WithClock(func() time.Time { return now }))
		_, err := other.Validate(token)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid))
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := issuer.Validate("not.a.jwt")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid))
		_, err = issuer.Validate("")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid))
	})

	t.Run("AlgorithmConfusion", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		rsIssuer := NewIssuer(NewRSATokenGenerator(key, "k1"), "iss", WithClock(func() time.Time { return now }))
		_, err = rsIssuer.Validate(token)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid))
	})

	t.Run("AudienceNotChecked", func(t *testing.T) {
		other, _, err := issuer.IssueAccessToken("u1", "some-other-client", "openid", "customer")
		require.NoError(t, err)
		_, err = issuer.Validate(other)
		assert.NoError(t, err)
	})
}

func TestRSATokenCarriesKeyID(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	gen := NewRSATokenGenerator(key, "k1")

	token, err := gen.GenerateToken(&Claims{TokenUse: TokenUseAccess, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	require.NoError(t, err)
	assert.Equal(t, "k1", parsed.Header["kid"])
	assert.Equal(t, "k1", gen.GetKeyID())
}

func TestRSARejectsForeignKeyID(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	token, err := NewRSATokenGenerator(key, "rotated").GenerateToken(&Claims{TokenUse: TokenUseAccess})
	require.NoError(t, err)

	_, err = NewRSATokenGenerator(key, "k1").ParseToken(token)
	assert.Error(t, err)

	_, err = NewRSATokenGenerator(key, "rotated").ParseToken(token)
	assert.NoError(t, err)
}
