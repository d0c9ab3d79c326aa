package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// ChallengeS256 is the only supported challenge method
const ChallengeS256 = "S256"

// GenerateCodeVerifier generates a cryptographically random code verifier
// (32 random bytes, 43 characters base64url encoded).
func GenerateCodeVerifier() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// S256Challenge derives the S256 code challenge for verifier
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// ValidateVerifierFormat checks RFC 7636 length and alphabet rules
func ValidateVerifierFormat(verifier string) error {
	if verifier == "" {
		return fmt.Errorf("code verifier cannot be empty")
	}
	if len(verifier) < 43 || len(verifier) > 128 {
		return fmt.Errorf("code verifier must be between 43 and 128 characters")
	}
	if !isValidCodeVerifier(verifier) {
		return fmt.Errorf("code verifier contains invalid characters")
	}
	return nil
}

// NormalizeChallengeMethod defaults an empty method to S256 and rejects
// anything else, including "plain".
func NormalizeChallengeMethod(method string) (string, error) {
	switch method {
	case "", ChallengeS256:
		return ChallengeS256, nil
	default:
		return "", fmt.Errorf("unsupported challenge method: %s", method)
	}
}

// isValidCodeVerifier checks if the code verifier contains only allowed characters
func isValidCodeVerifier(verifier string) bool {
	allowedChars := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	for _, char := range verifier {
		if !strings.ContainsRune(allowedChars, char) {
			return false
		}
	}
	return true
}
