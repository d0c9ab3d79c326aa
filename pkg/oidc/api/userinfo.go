package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/oidc"
	"github.com/tendant/simple-oidc/pkg/tokengenerator"
)

// UserInfo handles GET /userinfo. Claims are gated by the access token's
// scope at request time.
func (h *Handler) UserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	raw := jwtauth.TokenFromHeader(r)
	if raw == "" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
		writeError(w, r, http.StatusUnauthorized, apperrors.OAuthInvalidRequest, "missing bearer token")
		return
	}

	claims, err := h.issuer.Validate(raw)
	if err == nil && claims.TokenUse != tokengenerator.TokenUseAccess {
		err = apperrors.New(apperrors.ErrCodeTokenInvalid, "not an access token")
	}
	if err != nil {
		desc := message(err)
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="userinfo", error="invalid_token", error_description=%q`, desc))
		writeError(w, r, http.StatusUnauthorized, apperrors.OAuthInvalidToken, desc)
		return
	}

	if !oidc.HasScope(claims.Scope, oidc.ScopeOpenID) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo", error="insufficient_scope", scope="openid"`)
		writeError(w, r, http.StatusForbidden, apperrors.OAuthInsufficientScope, "openid scope required")
		return
	}

	u, err := h.users.GetBySubject(r.Context(), claims.Subject)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeUserNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeAppError(w, r, err)
		return
	}
	if !u.IsActive {
		writeError(w, r, http.StatusForbidden, apperrors.OAuthAccessDenied, "account is inactive")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, oidc.UserInfoClaims(u, claims.Scope))
}
