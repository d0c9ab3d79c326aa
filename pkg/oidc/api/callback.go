package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/externalprovider"
	"github.com/tendant/simple-oidc/pkg/utils"
)

// WeChatCallback handles GET /wechat/callback
func (h *Handler) WeChatCallback(w http.ResponseWriter, r *http.Request) {
	h.federatedCallback(w, r, externalprovider.WeChatProviderName)
}

// FederatedCallback handles GET /federated/{provider}/callback
func (h *Handler) FederatedCallback(w http.ResponseWriter, r *http.Request) {
	h.federatedCallback(w, r, chi.URLParam(r, "provider"))
}

// federatedCallback recovers the pending code from the signed state, resolves
// the remote user, binds the code and redirects like a local login.
func (h *Handler) federatedCallback(w http.ResponseWriter, r *http.Request, provider string) {
	if h.federation == nil || h.stateCodec == nil {
		writeAppError(w, r, apperrors.New(apperrors.ErrCodeProviderNotFound, "federated login is not enabled"))
		return
	}

	q := r.URL.Query()
	remoteCode := q.Get("code")
	if remoteCode == "" {
		writeAppError(w, r, apperrors.MissingParameter("code"))
		return
	}
	rawState := q.Get("state")
	if rawState == "" {
		writeAppError(w, r, apperrors.MissingParameter("state"))
		return
	}

	st, err := h.stateCodec.Decode(rawState)
	if err != nil {
		slog.Warn("Federated callback with invalid state", "provider", provider, "err", err)
		writeAppError(w, r, err)
		return
	}
	if st.Provider != provider {
		slog.Warn("Federated callback provider mismatch", "route", provider, "state", st.Provider)
		writeAppError(w, r, apperrors.New(apperrors.ErrCodeInvalidState, "invalid state: provider mismatch"))
		return
	}

	bridge, err := h.federation.Get(provider)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	pending, err := h.codes.Get(r.Context(), st.Code)
	if err != nil {
		h.writeCodeError(w, r, err)
		return
	}

	u, err := bridge.ExchangeCodeForUser(r.Context(), remoteCode, bridge.ResolveUserType(st.UserType))
	if err != nil {
		code := apperrors.GetCode(err)
		switch code {
		case apperrors.ErrCodeFederationTimeout:
			slog.Warn("Federated login timed out", "provider", provider, "code", utils.Prefix(st.Code))
			writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidRequest, "identity provider did not respond, please retry")
		case apperrors.ErrCodeInvalidFederatedCode:
			slog.Warn("Federated code rejected", "provider", provider, "code", utils.Prefix(st.Code))
			writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidRequest, "identity provider rejected the login")
		case apperrors.ErrCodeFederationUpstream:
			slog.Error("Identity provider returned an unreadable response", "provider", provider, "code", utils.Prefix(st.Code))
			writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidRequest, "identity provider returned an unexpected response")
		case apperrors.ErrCodeAccountInactive:
			writeError(w, r, http.StatusForbidden, apperrors.OAuthAccessDenied, "account is inactive")
		default:
			writeAppError(w, r, err)
		}
		return
	}

	if err := h.codes.Bind(r.Context(), st.Code, u.Subject); err != nil {
		h.writeCodeError(w, r, err)
		return
	}
	redirectWithCode(w, r, pending.RedirectURI, st.Code, st.State)
}
