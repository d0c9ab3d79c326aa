package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteSchema creates the users table. Timestamps are unix nanoseconds.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS oidc_users (
	subject       TEXT PRIMARY KEY,
	email         TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	avatar        TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	user_type     TEXT NOT NULL DEFAULT 'customer',
	is_active     INTEGER NOT NULL DEFAULT 1,
	federated_id  TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS oidc_users_email_key ON oidc_users (email) WHERE email <> '';
CREATE UNIQUE INDEX IF NOT EXISTS oidc_users_phone_key ON oidc_users (phone) WHERE phone <> '';
CREATE UNIQUE INDEX IF NOT EXISTS oidc_users_federated_id_key ON oidc_users (federated_id) WHERE federated_id <> '';
`

// SQLiteRepository implements Repository on an embedded SQLite database
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open modernc.org/sqlite handle
func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	return &SQLiteRepository{db: db}, nil
}

// Migrate creates the users table if it does not exist
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBySubject(ctx context.Context, subject string) (*User, error) {
	return r.getBy(ctx, "subject", subject)
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "email", normalizeEmail(email))
}

func (r *SQLiteRepository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return r.getBy(ctx, "phone", normalizePhone(phone))
}

func (r *SQLiteRepository) GetByFederatedID(ctx context.Context, federatedID string) (*User, error) {
	return r.getBy(ctx, "federated_id", federatedID)
}

func (r *SQLiteRepository) getBy(ctx context.Context, column, value string) (*User, error) {
	if value == "" {
		return nil, notFound(column, value)
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM oidc_users WHERE `+column+` = ?`, value)

	var u User
	var userType string
	var createdAt int64
	err := row.Scan(&u.Subject, &u.Email, &u.Phone, &u.Name, &u.Avatar, &u.PasswordHash,
		&userType, &u.IsActive, &u.FederatedID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(column, value)
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	u.UserType = UserType(userType)
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return &u, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, u *User) (*User, error) {
	if u == nil {
		return nil, fmt.Errorf("user cannot be nil")
	}
	n := prepareNew(u)
	_, err := r.db.ExecContext(ctx, `INSERT INTO oidc_users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Subject, n.Email, n.Phone, n.Name, n.Avatar, n.PasswordHash, string(n.UserType), n.IsActive, n.FederatedID, n.CreatedAt.UnixNano())
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, alreadyExists(err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return n, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
