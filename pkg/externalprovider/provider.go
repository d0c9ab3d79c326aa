package externalprovider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRejected marks a definitive refusal by the identity provider, such as an
// invalid, expired or replayed remote code. Transport failures never wrap it.
var ErrRejected = errors.New("rejected by identity provider")

// ErrMalformedResponse marks a reachable provider answering with a body that
// cannot be understood.
var ErrMalformedResponse = errors.New("malformed identity provider response")

// Provider is a remote identity provider reached over its OAuth2-style code flow.
type Provider interface {
	// Name is the stable provider key used in federated IDs and callback routes
	Name() string

	// AuthCodeURL builds the URL the browser is sent to
	AuthCodeURL(state string) string

	// Exchange trades a remote authorization code for a remote token
	Exchange(ctx context.Context, code string) (*RemoteToken, error)

	// FetchProfile loads the remote user's profile
	FetchProfile(ctx context.Context, token *RemoteToken) (*RemoteProfile, error)
}

// RemoteToken is the provider's answer to a code exchange. Subject is filled
// when the provider returns the user identifier alongside the token.
type RemoteToken struct {
	AccessToken string
	Subject     string
	Expiry      time.Time
}

// RemoteProfile represents normalized user information from a provider. Field
// names line up with user.User so profile data can be copied onto new accounts.
type RemoteProfile struct {
	ID     string
	Name   string
	Avatar string
	Raw    map[string]interface{}
}

func rejected(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

func malformed(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, what, err)
}

// Helper functions for parsing user info
func getStringValue(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func firstStringValue(data map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := getStringValue(data, key); v != "" {
			return v
		}
	}
	return ""
}
