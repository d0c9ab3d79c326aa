package oauth2client

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// PostgresSchema creates the registered clients table
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS oauth2_clients (
	client_id               TEXT PRIMARY KEY,
	client_secret_encrypted TEXT NOT NULL DEFAULT '',
	client_name             TEXT NOT NULL DEFAULT '',
	redirect_uris           TEXT[] NOT NULL,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db        *pgxpool.Pool
	encryptor *EncryptionService
}

// NewPostgresRepository creates a new PostgreSQL client repository
func NewPostgresRepository(db *pgxpool.Pool, encryptionKey string) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	encryptor, err := NewEncryptionService(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryption service: %w", err)
	}

	return &PostgresRepository{
		db:        db,
		encryptor: encryptor,
	}, nil
}

// Migrate creates the clients table if it does not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to migrate clients table: %w", err)
	}
	return nil
}

// GetClient retrieves a client by client ID
func (r *PostgresRepository) GetClient(ctx context.Context, clientID string) (*RegisteredClient, error) {
	var c RegisteredClient
	var encryptedSecret string
	err := r.db.QueryRow(ctx,
		`SELECT client_id, client_secret_encrypted, client_name, redirect_uris FROM oauth2_clients WHERE client_id = $1`,
		clientID,
	).Scan(&c.ClientID, &encryptedSecret, &c.ClientName, &c.RedirectURIs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, clientNotFound(clientID)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	c.ClientSecret, err = r.encryptor.Decrypt(c.ClientID, encryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client secret: %w", err)
	}
	return &c, nil
}

// CreateClient registers a new client and returns it
func (r *PostgresRepository) CreateClient(ctx context.Context, client *RegisteredClient) (*RegisteredClient, error) {
	if err := validateNewClient(client); err != nil {
		return nil, err
	}

	encryptedSecret, err := r.encryptor.Encrypt(client.ClientID, client.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt client secret: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO oauth2_clients (client_id, client_secret_encrypted, client_name, redirect_uris) VALUES ($1, $2, $3, $4)`,
		client.ClientID, encryptedSecret, client.ClientName, client.RedirectURIs)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.Newf(apperrors.ErrCodeConflict, "client already exists: %s", client.ClientID)
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client.clone(), nil
}
