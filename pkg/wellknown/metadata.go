package wellknown

import "strings"

// ProviderMetadata is the OpenID Connect Discovery 1.0 document. The same
// fields serve RFC 8414 authorization server metadata.
type ProviderMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`

	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// Config holds configuration for well-known endpoints
type Config struct {
	// Issuer is the iss value of issued tokens
	Issuer string

	// BaseURL is the public root the endpoint URLs are built from
	BaseURL string

	// SigningAlg is the JWS algorithm of issued ID tokens, e.g. "HS256"
	SigningAlg string

	// Supported scopes
	Scopes []string
}

// NewProviderMetadata builds the discovery document for config
func NewProviderMetadata(config Config) *ProviderMetadata {
	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile", "phone"}
	}
	alg := config.SigningAlg
	if alg == "" {
		alg = "HS256"
	}
	issuer := config.Issuer
	if issuer == "" {
		issuer = config.BaseURL
	}
	base := strings.TrimRight(config.BaseURL, "/")

	return &ProviderMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             base + "/authorize",
		TokenEndpoint:                     base + "/token",
		UserinfoEndpoint:                  base + "/userinfo",
		JwksURI:                           base + "/.well-known/jwks.json",
		ScopesSupported:                   scopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{alg},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		ClaimsSupported:                   []string{"sub", "iss", "aud", "exp", "iat", "email", "name", "picture", "phone_number", "userType"},
	}
}
