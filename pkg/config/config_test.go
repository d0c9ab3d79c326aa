package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Server.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Storage.OpTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Code.TTL)
	assert.Equal(t, time.Hour, cfg.JWT.TokenExpiry)
	assert.Equal(t, 8*time.Second, cfg.WeChat.Timeout)
	assert.False(t, cfg.WeChat.Enabled)
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.OAuth2IdP.Scopes)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/oidc.db")
	t.Setenv("AUTH_CODE_TTL", "2m")
	t.Setenv("SEED_CLIENT_ID", "app")
	t.Setenv("SEED_CLIENT_REDIRECT_URIS", "http://app/callback,http://app/other")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Code.TTL)
	assert.Equal(t, []string{"http://app/callback", "http://app/other"}, cfg.SeedClient.RedirectURIs)
}

func TestValidate(t *testing.T) {
	t.Run("DefaultSecretRejectedInProduction", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("BASE_URL", "https://id.example.com")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("ProductionRequiresHTTPS", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "a-much-longer-production-secret")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BASE_URL")
	})

	t.Run("WeChatRequiresCredentials", func(t *testing.T) {
		t.Setenv("WECHAT_ENABLED", "true")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WECHAT_APP_ID")
		assert.Contains(t, err.Error(), "WECHAT_APP_SECRET")
	})

	t.Run("FederatedSignUpCannotCreateAdmins", func(t *testing.T) {
		t.Setenv("WECHAT_ENABLED", "true")
		t.Setenv("WECHAT_APP_ID", "wx-app")
		t.Setenv("WECHAT_APP_SECRET", "wx-secret")
		t.Setenv("WECHAT_DEFAULT_USER_TYPE", "admin")
		t.Setenv("WECHAT_SELF_SERVICE_USER_TYPES", "customer,admin")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WECHAT_DEFAULT_USER_TYPE")
		assert.Contains(t, err.Error(), "WECHAT_SELF_SERVICE_USER_TYPES")
	})

	t.Run("FederatedSelfServiceDefaults", func(t *testing.T) {
		t.Setenv("WECHAT_ENABLED", "true")
		t.Setenv("WECHAT_APP_ID", "wx-app")
		t.Setenv("WECHAT_APP_SECRET", "wx-secret")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"customer", "provider"}, cfg.WeChat.SelfServiceUserTypes)
		assert.Equal(t, []string{"customer", "provider"}, cfg.OAuth2IdP.SelfServiceUserTypes)
	})

	t.Run("UnknownStorageDriver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "mongo")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STORAGE_DRIVER")
	})

	t.Run("SeedClientNeedsRedirect", func(t *testing.T) {
		t.Setenv("SEED_CLIENT_ID", "app")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SEED_CLIENT_REDIRECT_URIS")
	})

	t.Run("SeedUserNeedsPassword", func(t *testing.T) {
		t.Setenv("SEED_USER_EMAIL", "admin@example.com")
		t.Setenv("SEED_USER_PASSWORD", "short")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SEED_USER_PASSWORD")
	})

	t.Run("RSAKeySkipsSecretCheck", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("BASE_URL", "https://id.example.com")
		t.Setenv("JWT_RSA_KEY_FILE", "/etc/oidc/key.pem")
		_, err := Load()
		assert.NoError(t, err)
	})
}

func TestRequireValidURL(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"http://localhost:4000", true},
		{"https://id.example.com/base", true},
		{"", false},
		{"id.example.com", false},
		{"ftp://id.example.com", false},
		{"https://", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := RequireValidURL("BASE_URL", tt.value)
			assert.Equal(t, tt.ok, err == nil)
		})
	}
}

func TestValidationErrorsListsEveryField(t *testing.T) {
	err := Validate(func() ValidationErrors {
		return CollectErrors(
			RequireNonEmpty("A", ""),
			RequireNonEmpty("B", "set"),
			RequireMinLength("C", "short", 16),
		)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A: is required")
	assert.Contains(t, err.Error(), "C: must be at least 16 characters")
	assert.NotContains(t, err.Error(), "B:")
	assert.NotContains(t, err.Error(), "short")
}
