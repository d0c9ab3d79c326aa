package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema creates the authorization codes table
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS oidc_authorization_codes (
	code                  TEXT PRIMARY KEY,
	client_id             TEXT NOT NULL,
	user_subject          TEXT NOT NULL DEFAULT '',
	redirect_uri          TEXT NOT NULL,
	scope                 TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	code_challenge        TEXT NOT NULL DEFAULT '',
	code_challenge_method TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL,
	expires_at            TIMESTAMPTZ NOT NULL,
	used                  BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS oidc_authorization_codes_expires_at_idx ON oidc_authorization_codes (expires_at);
`

const codeColumns = `code, client_id, user_subject, redirect_uri, scope, state, code_challenge, code_challenge_method, created_at, expires_at, used`

// PostgresCodeRepository implements CodeRepository using PostgreSQL
type PostgresCodeRepository struct {
	db *pgxpool.Pool
}

// NewPostgresCodeRepository creates a new PostgreSQL code repository
func NewPostgresCodeRepository(db *pgxpool.Pool) (*PostgresCodeRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	return &PostgresCodeRepository{db: db}, nil
}

// Migrate creates the codes table if it does not exist
func (r *PostgresCodeRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to migrate authorization codes table: %w", err)
	}
	return nil
}

func (r *PostgresCodeRepository) Insert(ctx context.Context, c *AuthorizationCode) error {
	_, err := r.db.Exec(ctx, `INSERT INTO oidc_authorization_codes (`+codeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.Code, c.ClientID, c.UserSubject, c.RedirectURI, c.Scope, c.State,
		c.CodeChallenge, c.CodeChallengeMethod, c.CreatedAt, c.ExpiresAt, c.Used)
	if err != nil {
		return fmt.Errorf("failed to insert authorization code: %w", err)
	}
	return nil
}

func (r *PostgresCodeRepository) Get(ctx context.Context, code string) (*AuthorizationCode, error) {
	row := r.db.QueryRow(ctx, `SELECT `+codeColumns+` FROM oidc_authorization_codes WHERE code = $1`, code)
	c, err := scanCode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get authorization code: %w", err)
	}
	return c, nil
}

func (r *PostgresCodeRepository) BindSubject(ctx context.Context, code, subject string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE oidc_authorization_codes SET user_subject = $2
		WHERE code = $1 AND used = FALSE AND expires_at > $3 AND user_subject IN ('', $2)`,
		code, subject, now)
	if err != nil {
		return false, fmt.Errorf("failed to bind authorization code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresCodeRepository) Consume(ctx context.Context, p ConsumeParams) (*AuthorizationCode, bool, error) {
	row := r.db.QueryRow(ctx, `UPDATE oidc_authorization_codes SET used = TRUE
		WHERE code = $1 AND used = FALSE AND expires_at > $2
		  AND client_id = $3 AND redirect_uri = $4 AND user_subject <> ''
		  AND (code_challenge = '' OR code_challenge = $5)
		RETURNING `+codeColumns,
		p.Code, p.Now, p.ClientID, p.RedirectURI, p.CodeChallenge)
	c, err := scanCode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	return c, true, nil
}

func (r *PostgresCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oidc_authorization_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired authorization codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCode(row pgx.Row) (*AuthorizationCode, error) {
	var c AuthorizationCode
	if err := row.Scan(&c.Code, &c.ClientID, &c.UserSubject, &c.RedirectURI, &c.Scope, &c.State,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.CreatedAt, &c.ExpiresAt, &c.Used); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	return &c, nil
}
