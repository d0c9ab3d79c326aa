package oauth2client

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	minEncryptionKeyLength = 16
	keyDerivationRounds    = 10000
)

// EncryptionService seals client secrets at rest in the SQL repositories with
// AES-256-GCM. The client id is the additional data, so a sealed secret only
// opens for the row it was written to.
type EncryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService derives the AES key from encryptionKey
func NewEncryptionService(encryptionKey string) (*EncryptionService, error) {
	if err := ValidateEncryptionKey(encryptionKey); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(encryptionKey), []byte("simple-oidc-client-secret"), keyDerivationRounds, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &EncryptionService{aead: aead}, nil
}

// Encrypt seals secret for clientID. Public clients have no secret; an empty
// secret is stored as an empty string.
func (e *EncryptionService) Encrypt(clientID, secret string) (string, error) {
	if secret == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(secret), []byte(clientID))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a secret sealed for clientID
func (e *EncryptionService) Decrypt(clientID, stored string) (string, error) {
	if stored == "" {
		return "", nil
	}

	data, err := base64.RawURLEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decode client secret: %w", err)
	}
	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("sealed client secret too short")
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(clientID))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt client secret: %w", err)
	}
	return string(plaintext), nil
}

// ValidateEncryptionKey rejects keys too short to derive from
func ValidateEncryptionKey(key string) error {
	if len(key) < minEncryptionKeyLength {
		return fmt.Errorf("encryption key must be at least %d characters long", minEncryptionKeyLength)
	}
	return nil
}
