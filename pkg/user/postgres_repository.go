package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema creates the users table. Partial unique indexes keep empty
// phone and federated id values out of the uniqueness check.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS oidc_users (
	subject       TEXT PRIMARY KEY,
	email         TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	avatar        TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	user_type     TEXT NOT NULL DEFAULT 'customer',
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	federated_id  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS oidc_users_email_key ON oidc_users (email) WHERE email <> '';
CREATE UNIQUE INDEX IF NOT EXISTS oidc_users_phone_key ON oidc_users (phone) WHERE phone <> '';
CREATE UNIQUE INDEX IF NOT EXISTS oidc_users_federated_id_key ON oidc_users (federated_id) WHERE federated_id <> '';
`

const userColumns = `subject, email, phone, name, avatar, password_hash, user_type, is_active, federated_id, created_at`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL user repository
func NewPostgresRepository(db *pgxpool.Pool) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	return &PostgresRepository{db: db}, nil
}

// Migrate creates the users table if it does not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetBySubject(ctx context.Context, subject string) (*User, error) {
	return r.getBy(ctx, "subject", subject)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "email", normalizeEmail(email))
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return r.getBy(ctx, "phone", normalizePhone(phone))
}

func (r *PostgresRepository) GetByFederatedID(ctx context.Context, federatedID string) (*User, error) {
	return r.getBy(ctx, "federated_id", federatedID)
}

// getBy is only called with fixed column names.
func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*User, error) {
	if value == "" {
		return nil, notFound(column, value)
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM oidc_users WHERE `+column+` = $1`, value)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(column, value)
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) (*User, error) {
	if u == nil {
		return nil, fmt.Errorf("user cannot be nil")
	}
	n := prepareNew(u)
	_, err := r.db.Exec(ctx, `INSERT INTO oidc_users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.Subject, n.Email, n.Phone, n.Name, n.Avatar, n.PasswordHash, string(n.UserType), n.IsActive, n.FederatedID, n.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, alreadyExists(err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var userType string
	if err := row.Scan(&u.Subject, &u.Email, &u.Phone, &u.Name, &u.Avatar, &u.PasswordHash,
		&userType, &u.IsActive, &u.FederatedID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.UserType = UserType(userType)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
