package jwks

import (
	"fmt"
)

// JWKSService publishes the verification keys for issued tokens. With HS256
// there is nothing public to publish and the set is empty.
type JWKSService struct {
	active *KeyPair
}

// NewJWKSService creates a service for an RS256 key pair. A nil pair yields an empty set.
func NewJWKSService(keyPair *KeyPair) (*JWKSService, error) {
	if keyPair == nil {
		return &JWKSService{}, nil
	}
	if keyPair.PrivateKey == nil {
		return nil, fmt.Errorf("key pair %q has no private key", keyPair.Kid)
	}
	if keyPair.Alg == "" {
		keyPair.Alg = "RS256"
	}
	return &JWKSService{active: keyPair}, nil
}

// GetJWKS returns the public keys in JWKS format
func (s *JWKSService) GetJWKS() *JWKS {
	jwks := &JWKS{Keys: []JWK{}}
	if s.active != nil {
		jwks.Keys = append(jwks.Keys, *s.active.ToJWK())
	}
	return jwks
}

// GetActiveSigningKey returns the RS256 key, or nil under HS256
func (s *JWKSService) GetActiveSigningKey() *KeyPair {
	return s.active
}
