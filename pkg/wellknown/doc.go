// Package wellknown serves the discovery endpoints: the OpenID Connect
// provider configuration and the JSON Web Key Set.
//
//	keys, _ := jwks.NewJWKSService(keyPair) // nil keyPair under HS256
//	h := wellknown.NewHandler(wellknown.Config{
//		Issuer:     "https://id.example.com",
//		BaseURL:    "https://id.example.com",
//		SigningAlg: "RS256",
//	}, keys)
//	h.Routes(router)
//
// The provider configuration is served at /.well-known/openid_configuration,
// at the standard /.well-known/openid-configuration and at
// /.well-known/oauth-authorization-server (RFC 8414). Keys are at
// /.well-known/jwks.json. Responses are cacheable for an hour and allow
// cross-origin reads.
package wellknown
