package oauth2client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteSchema creates the registered clients table. Redirect URIs are a JSON array.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS oauth2_clients (
	client_id               TEXT PRIMARY KEY,
	client_secret_encrypted TEXT NOT NULL DEFAULT '',
	client_name             TEXT NOT NULL DEFAULT '',
	redirect_uris           TEXT NOT NULL
);
`

// SQLiteRepository implements Repository on an embedded SQLite database
type SQLiteRepository struct {
	db        *sql.DB
	encryptor *EncryptionService
}

// NewSQLiteRepository wraps an open modernc.org/sqlite handle
func NewSQLiteRepository(db *sql.DB, encryptionKey string) (*SQLiteRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	encryptor, err := NewEncryptionService(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryption service: %w", err)
	}

	return &SQLiteRepository{db: db, encryptor: encryptor}, nil
}

// Migrate creates the clients table if it does not exist
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("failed to migrate clients table: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetClient(ctx context.Context, clientID string) (*RegisteredClient, error) {
	var c RegisteredClient
	var encryptedSecret, redirectURIs string
	err := r.db.QueryRowContext(ctx,
		`SELECT client_id, client_secret_encrypted, client_name, redirect_uris FROM oauth2_clients WHERE client_id = ?`,
		clientID,
	).Scan(&c.ClientID, &encryptedSecret, &c.ClientName, &redirectURIs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clientNotFound(clientID)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if err := json.Unmarshal([]byte(redirectURIs), &c.RedirectURIs); err != nil {
		return nil, fmt.Errorf("failed to decode redirect uris: %w", err)
	}
	c.ClientSecret, err = r.encryptor.Decrypt(c.ClientID, encryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client secret: %w", err)
	}
	return &c, nil
}

func (r *SQLiteRepository) CreateClient(ctx context.Context, client *RegisteredClient) (*RegisteredClient, error) {
	if err := validateNewClient(client); err != nil {
		return nil, err
	}

	encryptedSecret, err := r.encryptor.Encrypt(client.ClientID, client.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt client secret: %w", err)
	}
	redirectURIs, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode redirect uris: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO oauth2_clients (client_id, client_secret_encrypted, client_name, redirect_uris) VALUES (?, ?, ?, ?)`,
		client.ClientID, encryptedSecret, client.ClientName, string(redirectURIs))
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return nil, apperrors.Newf(apperrors.ErrCodeConflict, "client already exists: %s", client.ClientID)
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client.clone(), nil
}
