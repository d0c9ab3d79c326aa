package oauth2client

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// Repository stores registered clients. Clients are reference data: the flows
// only read them.
type Repository interface {
	// GetClient returns ErrCodeInvalidClient when clientID is unknown
	GetClient(ctx context.Context, clientID string) (*RegisteredClient, error)

	// CreateClient registers a client, used for seeding and administration
	CreateClient(ctx context.Context, client *RegisteredClient) (*RegisteredClient, error)
}

func clientNotFound(clientID string) error {
	return apperrors.New(apperrors.ErrCodeInvalidClient, "client not found").WithDetail("client_id", clientID)
}

func validateNewClient(client *RegisteredClient) error {
	if client == nil {
		return fmt.Errorf("client cannot be nil")
	}
	if client.ClientID == "" {
		return apperrors.MissingParameter("client_id")
	}
	if len(client.RedirectURIs) == 0 {
		return apperrors.MissingParameter("redirect_uris")
	}
	return nil
}

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	clients map[string]*RegisteredClient
	mutex   sync.RWMutex
}

// NewInMemoryRepository creates a repository holding the given clients
func NewInMemoryRepository(clients ...*RegisteredClient) *InMemoryRepository {
	r := &InMemoryRepository{
		clients: make(map[string]*RegisteredClient),
	}
	for _, c := range clients {
		if c != nil && c.ClientID != "" {
			r.clients[c.ClientID] = c.clone()
		}
	}
	return r
}

func (r *InMemoryRepository) GetClient(ctx context.Context, clientID string) (*RegisteredClient, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, ok := r.clients[clientID]
	if !ok {
		return nil, clientNotFound(clientID)
	}
	return c.clone(), nil
}

func (r *InMemoryRepository) CreateClient(ctx context.Context, client *RegisteredClient) (*RegisteredClient, error) {
	if err := validateNewClient(client); err != nil {
		return nil, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.clients[client.ClientID]; exists {
		return nil, apperrors.Newf(apperrors.ErrCodeConflict, "client already exists: %s", client.ClientID)
	}
	r.clients[client.ClientID] = client.clone()
	return client.clone(), nil
}
