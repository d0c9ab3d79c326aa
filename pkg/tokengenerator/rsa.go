package tokengenerator

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RSATokenGenerator signs RS256 tokens with the key published in the JWKS
type RSATokenGenerator struct {
	privateKey *rsa.PrivateKey
	keyID      string
}

func NewRSATokenGenerator(privateKey *rsa.PrivateKey, keyID string) *RSATokenGenerator {
	return &RSATokenGenerator{
		privateKey: privateKey,
		keyID:      keyID,
	}
}

func (g *RSATokenGenerator) Algorithm() string {
	return jwt.SigningMethodRS256.Alg()
}

// GenerateToken creates a new RS256 token and puts the key ID in the header
func (g *RSATokenGenerator) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = g.keyID
	return token.SignedString(g.privateKey)
}

// ParseToken accepts only RS256 tokens signed by this generator's key
func (g *RSATokenGenerator) ParseToken(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// a token without kid predates key ids and is still checked against the key
		if kid, ok := token.Header["kid"].(string); ok && kid != g.keyID {
			return nil, fmt.Errorf("unknown signing key %q", kid)
		}
		return &g.privateKey.PublicKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// GetKeyID returns the key ID used by this token generator
func (g *RSATokenGenerator) GetKeyID() string {
	return g.keyID
}
