// Package login verifies local credentials.
//
// CredentialVerifier looks a user up by email or phone and compares the password
// against the stored hash with bcrypt or argon2id, picked from the hash prefix.
// Plain-text stored passwords are not supported. Unknown users still cost one
// dummy bcrypt comparison.
//
//	v := login.NewCredentialVerifier(users)
//	u, err := v.Verify(ctx, "alice@example.com", login.IdentifierEmail, password)
package login
