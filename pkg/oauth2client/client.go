package oauth2client

// RegisteredClient is a relying party allowed to run the authorization code flow
type RegisteredClient struct {
	ClientID     string
	ClientSecret string // optional; confidential clients must present it at /token
	ClientName   string
	RedirectURIs []string
}

// ValidateRedirectURI checks if the provided redirect URI is registered for this client.
// Matching is exact.
func (c *RegisteredClient) ValidateRedirectURI(redirectURI string) bool {
	for _, allowedURI := range c.RedirectURIs {
		if allowedURI == redirectURI {
			return true
		}
	}
	return false
}

// IsConfidential reports whether the client has a secret to authenticate with.
func (c *RegisteredClient) IsConfidential() bool {
	return c.ClientSecret != ""
}

func (c *RegisteredClient) clone() *RegisteredClient {
	n := *c
	n.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	return &n
}
