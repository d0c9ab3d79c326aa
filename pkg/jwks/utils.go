package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
)

// MinRSABits is the smallest modulus accepted for RS256 signing.
const MinRSABits = 2048

func GenerateRSAKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("rsa key size %d below minimum %d", bits, MinRSABits)
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// EncodeRSAPublicKeyModulus returns the "n" member of an RSA JWK
func EncodeRSAPublicKeyModulus(publicKey *rsa.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes())
}

// EncodeRSAPublicKeyExponent returns the "e" member of an RSA JWK
func EncodeRSAPublicKeyExponent(publicKey *rsa.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes())
}

// Thumbprint computes the RFC 7638 SHA-256 thumbprint of an RSA public key,
// base64url encoded. It is stable across PEM encodings of the same key.
func Thumbprint(publicKey *rsa.PublicKey) string {
	// members in lexicographic order, no whitespace
	canonical := fmt.Sprintf(`{"e":"%s","kty":"RSA","n":"%s"}`,
		EncodeRSAPublicKeyExponent(publicKey), EncodeRSAPublicKeyModulus(publicKey))
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// EncodePrivateKeyToPEM writes the key as PKCS#1 "RSA PRIVATE KEY"
func EncodePrivateKeyToPEM(privateKey *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}))
}

// DecodePrivateKeyFromPEM accepts PKCS#1 and PKCS#8 encodings. Keys shorter
// than MinRSABits are rejected.
func DecodePrivateKeyFromPEM(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#1 private key: %w", err)
		}
		key = k
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
		}
		k, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("PKCS#8 key is %T, only RSA keys can sign RS256", parsed)
		}
		key = k
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}

	if bits := key.N.BitLen(); bits < MinRSABits {
		return nil, fmt.Errorf("rsa key size %d below minimum %d", bits, MinRSABits)
	}
	return key, nil
}

func LoadPrivateKeyFile(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	return DecodePrivateKeyFromPEM(data)
}
