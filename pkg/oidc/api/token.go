package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/oidc"
	"github.com/tendant/simple-oidc/pkg/utils"
)

const grantTypeAuthorizationCode = "authorization_code"

// invalidCodeDescription is shared by every code-existence failure so the
// response does not reveal which check failed.
const invalidCodeDescription = "invalid, expired or already used authorization code"

// Token handles POST /token for the authorization_code grant. Clients may
// authenticate with form fields or HTTP Basic (client_secret_basic).
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	if err := r.ParseForm(); err != nil {
		writeAppError(w, r, apperrors.InvalidInput("body", "malformed form"))
		return
	}
	form := r.PostForm

	grantType := form.Get("grant_type")
	if grantType == "" {
		writeAppError(w, r, apperrors.MissingParameter("grant_type"))
		return
	}
	if grantType != grantTypeAuthorizationCode {
		writeError(w, r, http.StatusBadRequest, apperrors.OAuthUnsupportedGrantType, "only authorization_code is supported")
		return
	}

	clientID, clientSecret, basic, err := clientCredentials(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	code := form.Get("code")
	redirectURI := form.Get("redirect_uri")
	for _, f := range []struct{ name, value string }{
		{"code", code},
		{"redirect_uri", redirectURI},
		{"client_id", clientID},
	} {
		if f.value == "" {
			writeAppError(w, r, apperrors.MissingParameter(f.name))
			return
		}
	}

	client, err := h.clients.AuthenticateClient(r.Context(), clientID, clientSecret)
	if err != nil {
		switch apperrors.GetCode(err) {
		case apperrors.ErrCodeInvalidClient, apperrors.ErrCodeClientAuthFailed:
			slog.Info("Client authentication failed", "client_id", clientID, "reason", apperrors.GetCode(err))
			if basic {
				w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
			}
			writeError(w, r, http.StatusUnauthorized, apperrors.OAuthInvalidClient, "client authentication failed")
		default:
			writeAppError(w, r, err)
		}
		return
	}

	granted, err := h.codes.Redeem(r.Context(), code, client.ClientID, redirectURI, form.Get("code_verifier"))
	if err != nil {
		writeRedeemError(w, r, err)
		return
	}

	u, err := h.users.GetBySubject(r.Context(), granted.UserSubject)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeUserNotFound) {
			slog.Warn("Redeemed code bound to unknown user", "code", utils.Prefix(code), "subject", granted.UserSubject)
			writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidGrant, invalidCodeDescription)
			return
		}
		writeAppError(w, r, err)
		return
	}
	if !u.IsActive {
		slog.Warn("Token refused for inactive user", "subject", u.Subject, "client_id", client.ClientID)
		writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidGrant, invalidCodeDescription)
		return
	}

	accessToken, _, err := h.issuer.IssueAccessToken(u.Subject, client.ClientID, granted.Scope, string(u.UserType))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	idToken, _, err := h.issuer.IssueIDToken(u.Subject, client.ClientID, oidc.ClaimsForScope(u, granted.Scope))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	slog.Info("Tokens issued", "client_id", client.ClientID, "subject", u.Subject, "scope", granted.Scope)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, TokenResponse{
		AccessToken: accessToken,
		IDToken:     idToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.issuer.Expiry().Seconds()),
		Scope:       granted.Scope,
	})
}

// clientCredentials reads client_id and client_secret from the Basic header
// or the form. Both present and disagreeing is invalid_request.
func clientCredentials(r *http.Request) (clientID, clientSecret string, basic bool, err error) {
	formID := r.PostForm.Get("client_id")
	user, pass, ok := r.BasicAuth()
	if !ok {
		return formID, r.PostForm.Get("client_secret"), false, nil
	}

	// RFC 6749 2.3.1: Basic credentials are form-urlencoded first
	if clientID, err = url.QueryUnescape(user); err != nil {
		return "", "", true, apperrors.InvalidInput("authorization", "malformed client id")
	}
	if clientSecret, err = url.QueryUnescape(pass); err != nil {
		return "", "", true, apperrors.InvalidInput("authorization", "malformed client secret")
	}
	if formID != "" && formID != clientID {
		return "", "", true, apperrors.InvalidInput("client_id", "does not match the authorization header")
	}
	return clientID, clientSecret, true, nil
}

func writeRedeemError(w http.ResponseWriter, r *http.Request, err error) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeRedirectMismatch:
		writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidGrant, "Redirect URI mismatch")
	case apperrors.ErrCodeClientMismatch:
		writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidGrant, "authorization code was issued to another client")
	case apperrors.ErrCodeCodeNotFound, apperrors.ErrCodeCodeExpired, apperrors.ErrCodeCodeAlreadyUsed,
		apperrors.ErrCodeCodeNotBound, apperrors.ErrCodePKCEFailed, apperrors.ErrCodeBusinessLogic:
		writeError(w, r, http.StatusBadRequest, apperrors.OAuthInvalidGrant, invalidCodeDescription)
	default:
		writeAppError(w, r, err)
	}
}
