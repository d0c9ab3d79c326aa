package wellknown

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-oidc/pkg/jwks"
)

func newRouter(t *testing.T, keyPair *jwks.KeyPair, alg string) http.Handler {
	t.Helper()
	keys, err := jwks.NewJWKSService(keyPair)
	require.NoError(t, err)
	r := chi.NewRouter()
	NewHandler(Config{Issuer: "https://id.test", BaseURL: "https://id.test/", SigningAlg: alg}, keys).Routes(r)
	return r
}

func TestOpenIDConfiguration(t *testing.T) {
	r := newRouter(t, nil, "")

	for _, path := range []string{
		"/.well-known/openid_configuration",
		"/.well-known/openid-configuration",
		"/.well-known/oauth-authorization-server",
	} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var md ProviderMetadata
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
			assert.Equal(t, "https://id.test", md.Issuer)
			assert.Equal(t, "https://id.test/authorize", md.AuthorizationEndpoint)
			assert.Equal(t, "https://id.test/token", md.TokenEndpoint)
			assert.Equal(t, "https://id.test/userinfo", md.UserinfoEndpoint)
			assert.Equal(t, "https://id.test/.well-known/jwks.json", md.JwksURI)
			assert.Equal(t, []string{"HS256"}, md.IDTokenSigningAlgValuesSupported)
			assert.Equal(t, []string{"S256"}, md.CodeChallengeMethodsSupported)
			assert.NotEmpty(t, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestJWKSEndpoint(t *testing.T) {
	t.Run("EmptyUnderHS256", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(t, nil, "HS256").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"keys":[]}`, rec.Body.String())
	})

	t.Run("PublishesRSAKey", func(t *testing.T) {
		key, err := jwks.GenerateRSAKeyPair(2048)
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		newRouter(t, &jwks.KeyPair{Kid: "k1", PrivateKey: key}, "RS256").
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

		var set jwks.JWKS
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
		require.Len(t, set.Keys, 1)
		assert.Equal(t, "k1", set.Keys[0].Kid)
		assert.Equal(t, "RS256", set.Keys[0].Alg)
		assert.Equal(t, "sig", set.Keys[0].Use)
	})
}
