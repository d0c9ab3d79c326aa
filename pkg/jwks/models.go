package jwks

import "crypto/rsa"

// JWKS is the document served at /.well-known/jwks.json
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is the public half of an RSA signing key (RFC 7517, RFC 7518 section 6.3).
// N and E are unpadded base64url big-endian integers.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeyPair is the RS256 signing key
type KeyPair struct {
	Kid        string
	Alg        string
	PrivateKey *rsa.PrivateKey
}

// PublicKey returns the public half of the pair
func (kp *KeyPair) PublicKey() *rsa.PublicKey {
	return &kp.PrivateKey.PublicKey
}

// ToJWK converts a KeyPair to a JWK (public key only)
func (kp *KeyPair) ToJWK() *JWK {
	return &JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kp.Kid,
		Alg: kp.Alg,
		N:   EncodeRSAPublicKeyModulus(kp.PublicKey()),
		E:   EncodeRSAPublicKeyExponent(kp.PublicKey()),
	}
}
