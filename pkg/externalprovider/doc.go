// Package externalprovider federates logins through remote identity providers.
//
// A Provider speaks one IdP's code flow. WeChatProvider covers WeChat website
// login, whose token endpoint deviates from RFC 6749; OAuth2Provider covers any
// standards-compliant IdP through golang.org/x/oauth2.
//
// A Bridge wraps a Provider and reconciles the remote identity with the local
// user directory:
//
//	bridge := externalprovider.NewBridge(wechat, userService,
//		externalprovider.WithTimeout(8*time.Second),
//		externalprovider.WithPlaceholderSecret(secret),
//	)
//	u, err := bridge.ExchangeCodeForUser(ctx, remoteCode, user.UserTypeCustomer)
//
// Accounts are keyed by "<provider>:<remote subject>". First logins create an
// active account with no password and a synthesized placeholder email under
// the .federated.invalid domain; concurrent first logins converge on one
// account.
//
// Every remote call runs under its own deadline and OpenTelemetry span.
// Timeouts and transport failures map to errors.ErrCodeFederationTimeout,
// which is retryable. Refusals by the provider map to
// errors.ErrCodeInvalidFederatedCode.
package externalprovider
