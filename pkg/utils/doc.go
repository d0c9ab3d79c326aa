// Package utils provides small helpers shared across simple-oidc packages.
//
// The main concern is log redaction: authorization codes, bearer tokens and remote
// IdP codes are logged only as an 8-character prefix.
//
//	slog.Info("Code redeemed", "code_prefix", utils.Prefix(code))
//
// RandomHex draws from crypto/rand and backs authorization code generation.
package utils
