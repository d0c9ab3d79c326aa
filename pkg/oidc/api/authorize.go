package api

import (
	"log/slog"
	"net/http"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/externalprovider"
	"github.com/tendant/simple-oidc/pkg/login"
	"github.com/tendant/simple-oidc/pkg/oidc"
	"github.com/tendant/simple-oidc/pkg/utils"
)

const (
	LoginTypePassword  = "password"
	LoginTypeFederated = "federated"
)

// Authorize handles GET /authorize. It creates an unbound code and either
// renders the login form or redirects to the federated provider.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	responseType := q.Get("response_type")
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	loginType := q.Get("login_type")

	if responseType == "" {
		writeAppError(w, r, apperrors.MissingParameter("response_type"))
		return
	}
	if responseType != "code" {
		writeError(w, r, http.StatusBadRequest, apperrors.OAuthUnsupportedResponseType, "only response_type=code is supported")
		return
	}
	if clientID == "" {
		writeAppError(w, r, apperrors.MissingParameter("client_id"))
		return
	}
	if redirectURI == "" {
		writeAppError(w, r, apperrors.MissingParameter("redirect_uri"))
		return
	}
	switch loginType {
	case "", LoginTypePassword, LoginTypeFederated:
	default:
		writeAppError(w, r, apperrors.InvalidInput("login_type", "must be password or federated"))
		return
	}

	client, err := h.clients.ValidateAuthorizationRequest(r.Context(), clientID, redirectURI)
	if err != nil {
		slog.Info("Authorization request rejected", "client_id", clientID, "reason", apperrors.GetCode(err))
		writeAppError(w, r, err)
		return
	}

	var bridge *externalprovider.Bridge
	if loginType == LoginTypeFederated {
		if h.federation == nil {
			writeAppError(w, r, apperrors.New(apperrors.ErrCodeProviderNotFound, "federated login is not enabled"))
			return
		}
		name := q.Get("provider")
		if name == "" {
			name = h.defaultProvider
		}
		if bridge, err = h.federation.Get(name); err != nil {
			writeAppError(w, r, err)
			return
		}
	}

	state := q.Get("state")
	code, err := h.codes.Create(r.Context(), oidc.CreateParams{
		ClientID:            client.ClientID,
		RedirectURI:         redirectURI,
		Scope:               q.Get("scope"),
		State:               state,
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	if bridge == nil {
		renderLoginForm(w, r, http.StatusOK, loginFormData{Code: code, RedirectURI: redirectURI, State: state})
		return
	}

	provider := bridge.Provider().Name()
	remoteState, err := h.stateCodec.Encode(oidc.FederatedState{
		Code:     code,
		State:    state,
		Provider: provider,
		UserType: q.Get("user_type"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	slog.Info("Redirecting to federated provider", "provider", provider, "client_id", client.ClientID, "code", utils.Prefix(code))
	http.Redirect(w, r, bridge.Provider().AuthCodeURL(remoteState), http.StatusFound)
}

// LoginSubmit handles POST /login from the form rendered by Authorize.
func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeAppError(w, r, apperrors.InvalidInput("body", "malformed form"))
		return
	}
	code := r.PostForm.Get("code")
	redirectURI := r.PostForm.Get("redirect_uri")
	state := r.PostForm.Get("state")
	identifier := r.PostForm.Get("identifier")
	password := r.PostForm.Get("password")

	for _, f := range []struct{ name, value string }{
		{"code", code},
		{"redirect_uri", redirectURI},
		{"identifier", identifier},
		{"password", password},
	} {
		if f.value == "" {
			writeAppError(w, r, apperrors.MissingParameter(f.name))
			return
		}
	}

	pending, err := h.codes.Get(r.Context(), code)
	if err != nil {
		h.writeCodeError(w, r, err)
		return
	}
	if pending.RedirectURI != redirectURI {
		slog.Warn("Login redirect_uri differs from authorization request", "code", utils.Prefix(code), "client_id", pending.ClientID)
		writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidRequest, "redirect_uri does not match the authorization request")
		return
	}

	u, err := h.verifier.Verify(r.Context(), identifier, login.InferIdentifierKind(identifier), password)
	if err != nil {
		switch apperrors.GetCode(err) {
		case apperrors.ErrCodeUserNotFound, apperrors.ErrCodeAccountInactive, apperrors.ErrCodeInvalidCredentials:
			renderLoginForm(w, r, http.StatusUnauthorized, loginFormData{
				Code:        code,
				RedirectURI: redirectURI,
				State:       state,
				Identifier:  identifier,
				Error:       "Invalid credentials",
			})
		default:
			writeAppError(w, r, err)
		}
		return
	}

	if err := h.codes.Bind(r.Context(), code, u.Subject); err != nil {
		h.writeCodeError(w, r, err)
		return
	}
	redirectWithCode(w, r, pending.RedirectURI, code, pending.State)
}

// writeCodeError reports a pending-code problem during login as invalid_request.
func (h *Handler) writeCodeError(w http.ResponseWriter, r *http.Request, err error) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeCodeNotFound, apperrors.ErrCodeCodeExpired, apperrors.ErrCodeCodeAlreadyUsed,
		apperrors.ErrCodeBusinessLogic, apperrors.ErrCodeInvalidInput:
		writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidRequest, message(err))
	default:
		writeAppError(w, r, err)
	}
}
