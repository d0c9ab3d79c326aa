package oidc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSchema creates the authorization codes table. Timestamps are unix nanoseconds.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS oidc_authorization_codes (
	code                  TEXT PRIMARY KEY,
	client_id             TEXT NOT NULL,
	user_subject          TEXT NOT NULL DEFAULT '',
	redirect_uri          TEXT NOT NULL,
	scope                 TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	code_challenge        TEXT NOT NULL DEFAULT '',
	code_challenge_method TEXT NOT NULL DEFAULT '',
	created_at            INTEGER NOT NULL,
	expires_at            INTEGER NOT NULL,
	used                  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS oidc_authorization_codes_expires_at_idx ON oidc_authorization_codes (expires_at);
`

// SQLiteCodeRepository implements CodeRepository on an embedded SQLite database
type SQLiteCodeRepository struct {
	db *sql.DB
}

// NewSQLiteCodeRepository wraps an open modernc.org/sqlite handle
func NewSQLiteCodeRepository(db *sql.DB) (*SQLiteCodeRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	return &SQLiteCodeRepository{db: db}, nil
}

// Migrate creates the codes table if it does not exist
func (r *SQLiteCodeRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("failed to migrate authorization codes table: %w", err)
	}
	return nil
}

func (r *SQLiteCodeRepository) Insert(ctx context.Context, c *AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO oidc_authorization_codes (`+codeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Code, c.ClientID, c.UserSubject, c.RedirectURI, c.Scope, c.State,
		c.CodeChallenge, c.CodeChallengeMethod, c.CreatedAt.UnixNano(), c.ExpiresAt.UnixNano(), c.Used)
	if err != nil {
		return fmt.Errorf("failed to insert authorization code: %w", err)
	}
	return nil
}

func (r *SQLiteCodeRepository) Get(ctx context.Context, code string) (*AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+codeColumns+` FROM oidc_authorization_codes WHERE code = ?`, code)
	c, err := scanSQLiteCode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get authorization code: %w", err)
	}
	return c, nil
}

func (r *SQLiteCodeRepository) BindSubject(ctx context.Context, code, subject string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE oidc_authorization_codes SET user_subject = ?
		WHERE code = ? AND used = 0 AND expires_at > ? AND user_subject IN ('', ?)`,
		subject, code, now.UnixNano(), subject)
	if err != nil {
		return false, fmt.Errorf("failed to bind authorization code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to bind authorization code: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteCodeRepository) Consume(ctx context.Context, p ConsumeParams) (*AuthorizationCode, bool, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE oidc_authorization_codes SET used = 1
		WHERE code = ? AND used = 0 AND expires_at > ?
		  AND client_id = ? AND redirect_uri = ? AND user_subject <> ''
		  AND (code_challenge = '' OR code_challenge = ?)
		RETURNING `+codeColumns,
		p.Code, p.Now.UnixNano(), p.ClientID, p.RedirectURI, p.CodeChallenge)
	c, err := scanSQLiteCode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	return c, true, nil
}

func (r *SQLiteCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM oidc_authorization_codes WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired authorization codes: %w", err)
	}
	return res.RowsAffected()
}

func scanSQLiteCode(row *sql.Row) (*AuthorizationCode, error) {
	var c AuthorizationCode
	var createdAt, expiresAt int64
	if err := row.Scan(&c.Code, &c.ClientID, &c.UserSubject, &c.RedirectURI, &c.Scope, &c.State,
		&c.CodeChallenge, &c.CodeChallengeMethod, &createdAt, &expiresAt, &c.Used); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	c.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &c, nil
}
