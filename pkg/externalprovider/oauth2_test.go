package externalprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOAuth2IdP(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		render.JSON(w, r, map[string]interface{}{
			"access_token": "remote-at",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	r.Get("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer remote-at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		render.JSON(w, r, map[string]interface{}{
			"id":         float64(4242),
			"sub":        "s-1",
			"login":      "octo",
			"avatar_url": "https://img/octo.png",
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOAuth2Provider(t *testing.T, baseURL, subjectField string) *OAuth2Provider {
	t.Helper()
	p, err := NewOAuth2Provider(OAuth2Options{
		Name:         "octo",
		ClientID:     "cid",
		ClientSecret: "csecret",
		AuthURL:      baseURL + "/authorize",
		TokenURL:     baseURL + "/token",
		UserInfoURL:  baseURL + "/userinfo",
		RedirectURL:  "https://idp.example.com/federated/octo/callback",
		SubjectField: subjectField,
	})
	require.NoError(t, err)
	return p
}

func TestOAuth2Provider(t *testing.T) {
	srv := newFakeOAuth2IdP(t)
	ctx := context.Background()

	t.Run("AuthCodeURL", func(t *testing.T) {
		u, err := url.Parse(newTestOAuth2Provider(t, srv.URL, "").AuthCodeURL("xyz"))
		require.NoError(t, err)
		assert.Equal(t, "cid", u.Query().Get("client_id"))
		assert.Equal(t, "xyz", u.Query().Get("state"))
		assert.Equal(t, "openid profile email", u.Query().Get("scope"))
	})

	t.Run("DefaultSubjectField", func(t *testing.T) {
		p := newTestOAuth2Provider(t, srv.URL, "")
		token, err := p.Exchange(ctx, "good")
		require.NoError(t, err)
		profile, err := p.FetchProfile(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "s-1", profile.ID)
		assert.Equal(t, "octo", profile.Name)
		assert.Equal(t, "https://img/octo.png", profile.Avatar)
	})

	t.Run("NumericSubjectField", func(t *testing.T) {
		p := newTestOAuth2Provider(t, srv.URL, "id")
		token, err := p.Exchange(ctx, "good")
		require.NoError(t, err)
		profile, err := p.FetchProfile(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "4242", profile.ID)
	})

	t.Run("InvalidGrantIsRejection", func(t *testing.T) {
		_, err := newTestOAuth2Provider(t, srv.URL, "").Exchange(ctx, "bad")
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("UnauthorizedProfileIsRejection", func(t *testing.T) {
		_, err := newTestOAuth2Provider(t, srv.URL, "").FetchProfile(ctx, &RemoteToken{AccessToken: "nope"})
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("UnparseableProfileIsMalformed", func(t *testing.T) {
		garbled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer garbled.Close()

		_, err := newTestOAuth2Provider(t, garbled.URL, "").FetchProfile(ctx, &RemoteToken{AccessToken: "remote-at"})
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}
