package oauth2client

import (
	"context"
	"crypto/subtle"
	"log/slog"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// ClientService resolves and authenticates registered clients
type ClientService struct {
	repository Repository
}

// NewClientService creates a new client service with the provided repository
func NewClientService(repository Repository) *ClientService {
	return &ClientService{
		repository: repository,
	}
}

// Resolve looks up a client. Unknown clients yield ErrCodeInvalidClient.
func (s *ClientService) Resolve(ctx context.Context, clientID string) (*RegisteredClient, error) {
	if clientID == "" {
		return nil, apperrors.MissingParameter("client_id")
	}
	return s.repository.GetClient(ctx, clientID)
}

// ValidateRedirectURI reports whether uri is registered for client
func (s *ClientService) ValidateRedirectURI(client *RegisteredClient, uri string) bool {
	return client != nil && client.ValidateRedirectURI(uri)
}

// ValidateAuthorizationRequest resolves the client and checks the redirect URI.
// A redirect URI that is not registered fails with ErrCodeInvalidRedirect.
func (s *ClientService) ValidateAuthorizationRequest(ctx context.Context, clientID, redirectURI string) (*RegisteredClient, error) {
	client, err := s.Resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.ValidateRedirectURI(redirectURI) {
		slog.Warn("Redirect URI not registered", "client_id", clientID, "redirect_uri", redirectURI)
		return nil, apperrors.New(apperrors.ErrCodeInvalidRedirect, "redirect_uri is not registered for this client")
	}
	return client, nil
}

// AuthenticateClient resolves the client and, for confidential clients,
// compares the presented secret in constant time.
func (s *ClientService) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (*RegisteredClient, error) {
	client, err := s.Resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.IsConfidential() {
		return client, nil
	}
	if subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) != 1 {
		return nil, apperrors.New(apperrors.ErrCodeClientAuthFailed, "client authentication failed")
	}
	return client, nil
}

// Register adds a client to the registry
func (s *ClientService) Register(ctx context.Context, client *RegisteredClient) (*RegisteredClient, error) {
	created, err := s.repository.CreateClient(ctx, client)
	if err != nil {
		return nil, err
	}
	slog.Info("Client registered", "client_id", created.ClientID, "redirect_uris", len(created.RedirectURIs))
	return created, nil
}
