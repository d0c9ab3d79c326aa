// Package tokengenerator mints and validates the JWTs handed out by the token
// endpoint.
//
// Issuer wraps a TokenGenerator (HS256 with a shared secret by default, RS256
// when a private key is configured). Access tokens carry iss, sub, aud, iat,
// exp, jti, scope, userType and token_use=access. Identity tokens carry the
// same registered claims plus profile claims chosen by the caller from the
// granted scope.
//
// Validate distinguishes ErrCodeTokenExpired from ErrCodeTokenInvalid.
package tokengenerator
