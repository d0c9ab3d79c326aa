// Package jwks publishes JSON Web Key Sets (RFC 7517).
//
// When tokens are signed with RS256 the public half of the signing key is served
// at /.well-known/jwks.json so relying parties can verify tokens without the
// private key. Under the default HS256 signer the published set is empty.
//
//	key, err := jwks.LoadPrivateKeyFile("/etc/oidc/signing.pem")
//	svc, err := jwks.NewJWKSService(&jwks.KeyPair{Kid: "oidc-key-1", PrivateKey: key})
//	set := svc.GetJWKS()
package jwks
