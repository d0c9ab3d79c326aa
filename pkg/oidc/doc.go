// Package oidc holds the authorization code state machine behind the
// authorization code flow.
//
// A code is created unbound when /authorize is accepted, bound to a user
// subject after login (password or federated), and redeemed once at the token
// endpoint:
//
//	store := oidc.NewCodeStore(oidc.NewInMemoryCodeRepository())
//	code, _ := store.Create(ctx, oidc.CreateParams{ClientID: "app", RedirectURI: uri, Scope: "openid"})
//	_ = store.Bind(ctx, code, subject)
//	granted, err := store.Redeem(ctx, code, "app", uri, verifier)
//
// Bind and Redeem are single conditional updates in every repository
// (in-memory, Postgres, SQLite), so concurrent redemptions of one code
// produce exactly one success.
//
// The package also carries the scope to claim mapping shared by the token and
// userinfo endpoints, and StateCodec, which signs the state parameter sent to
// external identity providers.
package oidc
