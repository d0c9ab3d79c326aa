package bootstrap

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tendant/simple-oidc/pkg/jwks"
)

// RSAKeyConfig contains configuration for RSA signing key bootstrap
type RSAKeyConfig struct {
	// Path to the PEM private key file
	KeyFile string

	// KeyID is published as "kid". Empty derives one from the key fingerprint.
	KeyID string

	// Generate creates the key file when it does not exist
	Generate bool

	// Key size in bits (2048, 3072, or 4096)
	// Default: 2048
	KeySize int
}

// RSAKeyResult contains the result of RSA key bootstrap
type RSAKeyResult struct {
	PrivateKey  *rsa.PrivateKey
	KeyID       string
	KeyPath     string
	Generated   bool   // true if newly generated, false if loaded from file
	Fingerprint string // RFC 7638 thumbprint
}

// KeyPair returns the key in the form the JWKS service publishes
func (r *RSAKeyResult) KeyPair() *jwks.KeyPair {
	return &jwks.KeyPair{Kid: r.KeyID, Alg: "RS256", PrivateKey: r.PrivateKey}
}

// BootstrapRSAKey loads the signing key, generating it first when allowed
func BootstrapRSAKey(cfg RSAKeyConfig) (*RSAKeyResult, error) {
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("invalid RSA key configuration: KeyFile is required")
	}
	if cfg.KeySize == 0 {
		cfg.KeySize = 2048
	}
	if cfg.KeySize != 2048 && cfg.KeySize != 3072 && cfg.KeySize != 4096 {
		return nil, fmt.Errorf("invalid key size %d (must be 2048, 3072, or 4096)", cfg.KeySize)
	}

	keyPath, err := filepath.Abs(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve key path: %w", err)
	}

	_, statErr := os.Stat(keyPath)
	switch {
	case statErr == nil:
		return loadExistingKey(keyPath, cfg)
	case errors.Is(statErr, fs.ErrNotExist) && cfg.Generate:
		return generateNewKey(keyPath, cfg)
	default:
		return nil, fmt.Errorf("signing key %s: %w", keyPath, statErr)
	}
}

func generateNewKey(keyPath string, cfg RSAKeyConfig) (*RSAKeyResult, error) {
	slog.Info("RSA key not found - generating new key pair", "path", keyPath, "key_size", cfg.KeySize)

	privateKey, err := jwks.GenerateRSAKeyPair(cfg.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	// owner read/write only
	if err := os.WriteFile(keyPath, []byte(jwks.EncodePrivateKeyToPEM(privateKey)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	result := newResult(privateKey, keyPath, cfg.KeyID)
	result.Generated = true
	slog.Info("RSA key generated", "path", keyPath, "key_id", result.KeyID, "fingerprint", result.Fingerprint)
	return result, nil
}

func loadExistingKey(keyPath string, cfg RSAKeyConfig) (*RSAKeyResult, error) {
	privateKey, err := jwks.LoadPrivateKeyFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	result := newResult(privateKey, keyPath, cfg.KeyID)
	slog.Info("RSA key loaded", "path", keyPath, "key_id", result.KeyID,
		"key_size", privateKey.N.BitLen(), "fingerprint", result.Fingerprint)
	return result, nil
}

func newResult(privateKey *rsa.PrivateKey, keyPath, keyID string) *RSAKeyResult {
	fingerprint := jwks.Thumbprint(&privateKey.PublicKey)
	if keyID == "" {
		keyID = "oidc-" + fingerprint[:12]
	}
	return &RSAKeyResult{
		PrivateKey:  privateKey,
		KeyID:       keyID,
		KeyPath:     keyPath,
		Fingerprint: fingerprint,
	}
}
