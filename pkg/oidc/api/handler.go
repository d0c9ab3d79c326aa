package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/externalprovider"
	"github.com/tendant/simple-oidc/pkg/login"
	"github.com/tendant/simple-oidc/pkg/oauth2client"
	"github.com/tendant/simple-oidc/pkg/oidc"
	"github.com/tendant/simple-oidc/pkg/tokengenerator"
	"github.com/tendant/simple-oidc/pkg/user"
)

// Handler serves the authorization, login, federated callback, token and
// userinfo endpoints.
type Handler struct {
	clients  *oauth2client.ClientService
	codes    *oidc.CodeStore
	verifier *login.CredentialVerifier
	users    user.Repository
	issuer   *tokengenerator.Issuer

	federation      *externalprovider.Registry
	stateCodec      *oidc.StateCodec
	defaultProvider string
}

// Option is a function that configures a Handler
type Option func(*Handler)

// WithFederation enables login_type=federated. codec signs the state sent to
// the remote provider.
func WithFederation(registry *externalprovider.Registry, codec *oidc.StateCodec) Option {
	return func(h *Handler) {
		h.federation = registry
		h.stateCodec = codec
	}
}

// WithDefaultProvider names the provider used when /authorize omits "provider"
func WithDefaultProvider(name string) Option {
	return func(h *Handler) {
		h.defaultProvider = name
	}
}

func NewHandler(
	clients *oauth2client.ClientService,
	codes *oidc.CodeStore,
	verifier *login.CredentialVerifier,
	users user.Repository,
	issuer *tokengenerator.Issuer,
	opts ...Option,
) *Handler {
	h := &Handler{
		clients:         clients,
		codes:           codes,
		verifier:        verifier,
		users:           users,
		issuer:          issuer,
		defaultProvider: externalprovider.WeChatProviderName,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Guards are middleware stacks applied to groups of routes
type Guards struct {
	// Attempt wraps endpoints that start or continue a new authorization attempt
	Attempt []func(http.Handler) http.Handler
	// Credential wraps endpoints that check a password or client secret
	Credential []func(http.Handler) http.Handler
}

// Routes registers the endpoints on r
func (h *Handler) Routes(r chi.Router, g Guards) {
	loginGuards := make([]func(http.Handler) http.Handler, 0, len(g.Attempt)+len(g.Credential))
	loginGuards = append(loginGuards, g.Attempt...)
	loginGuards = append(loginGuards, g.Credential...)

	r.With(g.Attempt...).Get("/authorize", h.Authorize)
	r.With(loginGuards...).Post("/login", h.LoginSubmit)
	r.Get("/wechat/callback", h.WeChatCallback)
	r.Get("/federated/{provider}/callback", h.FederatedCallback)
	r.With(g.Credential...).Post("/token", h.Token)
	r.Get("/userinfo", h.UserInfo)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, oauthError, description string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: oauthError, ErrorDescription: description})
}

// writeAppError maps a coded error to its OAuth2 status and error value.
// Uncoded and internal errors are logged and reported as server_error.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "code", code, "err", err)
		if code == apperrors.ErrCodeTimeout || code == apperrors.ErrCodeUnavailable {
			writeError(w, r, http.StatusServiceUnavailable, apperrors.OAuthTemporarilyUnavailable, "service temporarily unavailable")
			return
		}
		writeError(w, r, http.StatusInternalServerError, apperrors.OAuthServerError, "internal server error")
		return
	}
	writeError(w, r, status, apperrors.MapErrorCodeToOAuth2(code), message(err))
}

func message(err error) string {
	var e *apperrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// redirectWithCode sends the browser back to the client with the bound code.
// 307 keeps the method of the request that completed the login.
func redirectWithCode(w http.ResponseWriter, r *http.Request, redirectURI, code, state string) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		writeAppError(w, r, apperrors.InternalWrap(err, "stored redirect_uri is invalid"))
		return
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusTemporaryRedirect)
}
