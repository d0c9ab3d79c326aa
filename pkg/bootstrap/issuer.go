package bootstrap

import (
	"github.com/tendant/simple-oidc/pkg/config"
	"github.com/tendant/simple-oidc/pkg/jwks"
	"github.com/tendant/simple-oidc/pkg/tokengenerator"
)

// NewIssuer builds the token issuer and the key set published for it. An RSA
// key file selects RS256; otherwise tokens are HS256 with the shared secret and
// the published set is empty.
func NewIssuer(cfg config.JWTConfig) (*tokengenerator.Issuer, *jwks.JWKSService, error) {
	opts := []tokengenerator.IssuerOption{tokengenerator.WithExpiry(cfg.TokenExpiry)}

	if cfg.RSAKeyFile == "" {
		keys, err := jwks.NewJWKSService(nil)
		if err != nil {
			return nil, nil, err
		}
		gen := tokengenerator.NewJwtTokenGenerator(cfg.Secret)
		return tokengenerator.NewIssuer(gen, cfg.Issuer, opts...), keys, nil
	}

	key, err := BootstrapRSAKey(RSAKeyConfig{
		KeyFile:  cfg.RSAKeyFile,
		KeyID:    cfg.RSAKeyID,
		Generate: cfg.RSAKeyGenerate,
	})
	if err != nil {
		return nil, nil, err
	}
	keys, err := jwks.NewJWKSService(key.KeyPair())
	if err != nil {
		return nil, nil, err
	}
	gen := tokengenerator.NewRSATokenGenerator(key.PrivateKey, key.KeyID)
	return tokengenerator.NewIssuer(gen, cfg.Issuer, opts...), keys, nil
}
