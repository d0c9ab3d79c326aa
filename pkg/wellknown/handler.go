package wellknown

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-oidc/pkg/jwks"
)

// Handler provides HTTP handlers for well-known endpoints
type Handler struct {
	metadata *ProviderMetadata
	keys     *jwks.JWKSService
}

// NewHandler creates a new well-known endpoints handler
func NewHandler(config Config, keys *jwks.JWKSService) *Handler {
	return &Handler{
		metadata: NewProviderMetadata(config),
		keys:     keys,
	}
}

func cacheable(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// OpenIDConfiguration handles GET /.well-known/openid-configuration
func (h *Handler) OpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	slog.Debug("OpenID configuration requested", "path", r.URL.Path)
	cacheable(w)
	render.JSON(w, r, h.metadata)
}

// JWKS handles GET /.well-known/jwks.json. Under HS256 the set is empty.
func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	cacheable(w)
	render.JSON(w, r, h.keys.GetJWKS())
}

// Routes registers the discovery document under both the underscore and the
// standard hyphenated path, plus the RFC 8414 path and the key set.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/.well-known/openid_configuration", h.OpenIDConfiguration)
	r.Get("/.well-known/openid-configuration", h.OpenIDConfiguration)
	r.Get("/.well-known/oauth-authorization-server", h.OpenIDConfiguration)
	r.Get("/.well-known/jwks.json", h.JWKS)
}
