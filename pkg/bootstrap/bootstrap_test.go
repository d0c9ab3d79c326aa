package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-oidc/pkg/config"
	"github.com/tendant/simple-oidc/pkg/login"
	"github.com/tendant/simple-oidc/pkg/oauth2client"
	"github.com/tendant/simple-oidc/pkg/user"
)

func TestBootstrapRSAKey(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "keys", "signing.pem")

	t.Run("MissingWithoutGenerate", func(t *testing.T) {
		_, err := BootstrapRSAKey(RSAKeyConfig{KeyFile: keyFile})
		assert.Error(t, err)
	})

	t.Run("GenerateThenLoad", func(t *testing.T) {
		generated, err := BootstrapRSAKey(RSAKeyConfig{KeyFile: keyFile, Generate: true})
		require.NoError(t, err)
		assert.True(t, generated.Generated)
		assert.Regexp(t, `^oidc-[A-Za-z0-9_-]{12}$`, generated.KeyID)

		info, err := os.Stat(keyFile)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		loaded, err := BootstrapRSAKey(RSAKeyConfig{KeyFile: keyFile, Generate: true})
		require.NoError(t, err)
		assert.False(t, loaded.Generated)
		assert.Equal(t, generated.KeyID, loaded.KeyID)
		assert.True(t, generated.PrivateKey.Equal(loaded.PrivateKey))
	})

	t.Run("ExplicitKeyID", func(t *testing.T) {
		res, err := BootstrapRSAKey(RSAKeyConfig{KeyFile: keyFile, KeyID: "key-2024"})
		require.NoError(t, err)
		assert.Equal(t, "key-2024", res.KeyPair().Kid)
		assert.Equal(t, "RS256", res.KeyPair().Alg)
	})

	t.Run("InvalidKeySize", func(t *testing.T) {
		_, err := BootstrapRSAKey(RSAKeyConfig{KeyFile: keyFile, KeySize: 1024})
		assert.Error(t, err)
	})
}

func TestEnsureClient(t *testing.T) {
	ctx := context.Background()
	clients := oauth2client.NewClientService(oauth2client.NewInMemoryRepository())
	client := &oauth2client.RegisteredClient{ClientID: "app", RedirectURIs: []string{"http://app/cb"}}

	created, err := EnsureClient(ctx, clients, client)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureClient(ctx, clients, client)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureLocalUser(t *testing.T) {
	ctx := context.Background()
	repo := user.NewInMemoryRepository()
	users := user.NewUserService(repo)
	cfg := LocalUserConfig{Email: "admin@example.com", Password: "correct horse"}

	first, err := EnsureLocalUser(ctx, users, cfg)
	require.NoError(t, err)
	assert.True(t, first.Created)

	stored, err := repo.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.UserTypeAdmin, stored.UserType)
	assert.True(t, stored.IsActive)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)

	verified, err := login.NewCredentialVerifier(repo).Verify(ctx, "admin@example.com", login.IdentifierEmail, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, first.Subject, verified.Subject)

	second, err := EnsureLocalUser(ctx, users, cfg)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Subject, second.Subject)

	_, err = EnsureLocalUser(ctx, users, LocalUserConfig{Password: "x"})
	assert.Error(t, err)
}

func TestNewIssuer(t *testing.T) {
	t.Run("HS256", func(t *testing.T) {
		issuer, keys, err := NewIssuer(config.JWTConfig{
			Secret: "a-test-secret-of-some-length", Issuer: "http://id.test", TokenExpiry: time.Hour,
		})
		require.NoError(t, err)
		assert.Equal(t, "HS256", issuer.Algorithm())
		assert.Empty(t, keys.GetJWKS().Keys)
	})

	t.Run("RS256", func(t *testing.T) {
		issuer, keys, err := NewIssuer(config.JWTConfig{
			Issuer:         "http://id.test",
			TokenExpiry:    time.Hour,
			RSAKeyFile:     filepath.Join(t.TempDir(), "signing.pem"),
			RSAKeyGenerate: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "RS256", issuer.Algorithm())
		require.Len(t, keys.GetJWKS().Keys, 1)

		token, _, err := issuer.IssueAccessToken("sub-1", "app", "openid", "customer")
		require.NoError(t, err)
		claims, err := issuer.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "sub-1", claims.Subject)
	})
}
