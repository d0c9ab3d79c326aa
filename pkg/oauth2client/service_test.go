package oauth2client

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

const testEncryptionKey = "test-encryption-key-32-characters"

func newTestClients() []*RegisteredClient {
	return []*RegisteredClient{
		{ClientID: "app", ClientSecret: "s3cret", ClientName: "App", RedirectURIs: []string{"http://app/callback"}},
		{ClientID: "spa", ClientName: "Public SPA", RedirectURIs: []string{"http://spa/cb", "http://spa/cb2"}},
	}
}

func newSQLiteRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo, err := NewSQLiteRepository(db, testEncryptionKey)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestClientService(t *testing.T) {
	ctx := context.Background()

	repos := map[string]func(t *testing.T) Repository{
		"InMemory": func(t *testing.T) Repository { return NewInMemoryRepository() },
		"SQLite":   func(t *testing.T) Repository { return newSQLiteRepository(t) },
	}

	for name, newRepo := range repos {
		t.Run(name, func(t *testing.T) {
			svc := NewClientService(newRepo(t))
			for _, c := range newTestClients() {
				_, err := svc.Register(ctx, c)
				require.NoError(t, err)
			}

			t.Run("Resolve", func(t *testing.T) {
				c, err := svc.Resolve(ctx, "app")
				require.NoError(t, err)
				assert.Equal(t, "App", c.ClientName)
				assert.Equal(t, "s3cret", c.ClientSecret)
				assert.Equal(t, []string{"http://app/callback"}, c.RedirectURIs)
			})

			t.Run("ResolveUnknown", func(t *testing.T) {
				_, err := svc.Resolve(ctx, "nope")
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidClient))
			})

			t.Run("DuplicateRegistration", func(t *testing.T) {
				_, err := svc.Register(ctx, newTestClients()[0])
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
			})

			t.Run("ValidateAuthorizationRequest", func(t *testing.T) {
				_, err := svc.ValidateAuthorizationRequest(ctx, "spa", "http://spa/cb2")
				assert.NoError(t, err)

				_, err = svc.ValidateAuthorizationRequest(ctx, "spa", "http://spa/cb2/extra")
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidRedirect))
			})

			t.Run("AuthenticateClient", func(t *testing.T) {
				_, err := svc.AuthenticateClient(ctx, "app", "s3cret")
				assert.NoError(t, err)

				_, err = svc.AuthenticateClient(ctx, "app", "wrong")
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClientAuthFailed))

				_, err = svc.AuthenticateClient(ctx, "spa", "")
				assert.NoError(t, err, "public clients have no secret to check")
			})
		})
	}
}

func TestRegisteredClientValidateRedirectURI(t *testing.T) {
	c := &RegisteredClient{RedirectURIs: []string{"http://app/callback"}}
	assert.True(t, c.ValidateRedirectURI("http://app/callback"))
	assert.False(t, c.ValidateRedirectURI("http://app/callback/"))
	assert.False(t, c.ValidateRedirectURI("http://other"))
}

func TestEncryptionService(t *testing.T) {
	encryptor, err := NewEncryptionService(testEncryptionKey)
	require.NoError(t, err)

	t.Run("EncryptDecrypt", func(t *testing.T) {
		encrypted, err := encryptor.Encrypt("app", "my-secret-client-secret")
		require.NoError(t, err)
		assert.NotContains(t, encrypted, "my-secret-client-secret")

		decrypted, err := encryptor.Decrypt("app", encrypted)
		require.NoError(t, err)
		assert.Equal(t, "my-secret-client-secret", decrypted)
	})

	t.Run("BoundToClientID", func(t *testing.T) {
		encrypted, err := encryptor.Encrypt("app", "my-secret-client-secret")
		require.NoError(t, err)

		_, err = encryptor.Decrypt("other-app", encrypted)
		assert.Error(t, err)
	})

	t.Run("EmptySecretStaysEmpty", func(t *testing.T) {
		encrypted, err := encryptor.Encrypt("app", "")
		require.NoError(t, err)
		assert.Empty(t, encrypted)
	})

	t.Run("InvalidCiphertext", func(t *testing.T) {
		_, err := encryptor.Decrypt("app", "not base64!")
		assert.Error(t, err)
	})

	t.Run("WrongKey", func(t *testing.T) {
		encrypted, err := encryptor.Encrypt("app", "my-secret-client-secret")
		require.NoError(t, err)

		other, err := NewEncryptionService("another-encryption-key-entirely")
		require.NoError(t, err)
		_, err = other.Decrypt("app", encrypted)
		assert.Error(t, err)
	})

	t.Run("ShortKey", func(t *testing.T) {
		_, err := NewEncryptionService("short")
		assert.Error(t, err)
	})
}

func TestValidateEncryptionKey(t *testing.T) {
	assert.NoError(t, ValidateEncryptionKey("this-is-a-valid-key"))
	assert.Error(t, ValidateEncryptionKey("short"))
}
