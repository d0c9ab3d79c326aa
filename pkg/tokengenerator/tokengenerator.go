package tokengenerator

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Token use values. Only access tokens are accepted by the userinfo endpoint.
const (
	TokenUseAccess = "access"
	TokenUseID     = "id"
)

// TokenGenerator signs and parses claims with one algorithm and key
type TokenGenerator interface {
	// GenerateToken signs the claims
	GenerateToken(claims *Claims) (string, error)

	// ParseToken verifies the signature and registered claims. Errors are the
	// raw jwt errors so callers can tell expiry from other failures.
	ParseToken(tokenStr string, opts ...jwt.ParserOption) (*Claims, error)

	// Algorithm is the JWS alg value, e.g. "HS256"
	Algorithm() string
}

// Claims struct for JWT claims
type Claims struct {
	Scope    string `json:"scope,omitempty"`
	UserType string `json:"userType,omitempty"`
	TokenUse string `json:"token_use"`

	// Profile claims, only present in identity tokens and only when licensed by scope
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`

	jwt.RegisteredClaims
}

// JwtTokenGenerator signs with HS256 and a shared secret
type JwtTokenGenerator struct {
	Secret string
}

// NewJwtTokenGenerator creates a new JwtTokenGenerator
func NewJwtTokenGenerator(secret string) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		Secret: secret,
	}
}

func (g *JwtTokenGenerator) Algorithm() string {
	return jwt.SigningMethodHS256.Alg()
}

// GenerateToken creates a new HS256 token for the claims
func (g *JwtTokenGenerator) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(g.Secret))
}

// ParseToken parses and validates a token string
func (g *JwtTokenGenerator) ParseToken(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(g.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
