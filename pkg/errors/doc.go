// Package errors provides structured error handling with error codes for simple-oidc.
//
// Every service returns *Error values carrying an ErrorCode. Handlers never inspect
// message text; they switch on the code and translate it to an HTTP status and an
// OAuth2 "error" value:
//
//	err := errors.New(errors.ErrCodeCodeExpired, "authorization code expired")
//
//	errors.IsCode(err, errors.ErrCodeCodeExpired)        // true
//	errors.MapErrorCodeToHTTPStatus(errors.GetCode(err)) // 400
//	errors.MapErrorCodeToOAuth2(errors.GetCode(err))     // "invalid_grant"
//
// Redemption failures have distinct codes so they can be logged precisely, while the
// token endpoint folds them into invalid_grant for the client.
//
// Federation failures (ErrCodeFederationTimeout, ErrCodeInvalidFederatedCode,
// ErrCodeFederationUpstream) surface to clients as invalid_request. Only
// ErrCodeFederationTimeout is retryable:
//
//	if errors.IsRetryable(err) {
//		// tell the user to try again
//	}
package errors
