package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-sso/pkg/realm"
)

const schema = `
CREATE TABLE IF NOT EXISTS sso_accounts (
	id                     UUID PRIMARY KEY,
	realm                  TEXT NOT NULL,
	external_id            TEXT NOT NULL,
	identifier             TEXT NOT NULL,
	email                  TEXT NOT NULL DEFAULT '',
	full_name              TEXT NOT NULL DEFAULT '',
	first_name             TEXT NOT NULL DEFAULT '',
	last_name              TEXT NOT NULL DEFAULT '',
	enabled                BOOLEAN NOT NULL DEFAULT TRUE,
	locked                 BOOLEAN NOT NULL DEFAULT FALSE,
	locked_until           TIMESTAMPTZ,
	failed_attempts        INTEGER NOT NULL DEFAULT 0,
	login_allowed          BOOLEAN NOT NULL DEFAULT FALSE,
	active_from            TIMESTAMPTZ,
	active_until           TIMESTAMPTZ,
	last_login_at          TIMESTAMPTZ,
	last_synced_attributes JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (realm, external_id)
)`

const selectColumns = `
	id, realm, external_id, identifier, email, full_name, first_name, last_name,
	enabled, locked, locked_until, failed_attempts, login_allowed,
	active_from, active_until, last_login_at, last_synced_attributes,
	created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL account repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// Migrate creates the accounts table if it does not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create sso_accounts: %w", err)
	}
	return nil
}

// FindByExternalID retrieves the account linked to externalID in realm rl
func (r *PostgresRepository) FindByExternalID(ctx context.Context, rl realm.Realm, externalID string) (*Account, error) {
	query := `SELECT` + selectColumns + ` FROM sso_accounts WHERE realm = $1 AND external_id = $2`

	a := &Account{}
	var realmName string
	err := r.pool.QueryRow(ctx, query, rl.String(), externalID).Scan(
		&a.ID,
		&realmName,
		&a.ExternalID,
		&a.Identifier,
		&a.Email,
		&a.FullName,
		&a.FirstName,
		&a.LastName,
		&a.Enabled,
		&a.Locked,
		&a.LockedUntil,
		&a.FailedAttempts,
		&a.LoginAllowed,
		&a.ActiveFrom,
		&a.ActiveUntil,
		&a.LastLoginAt,
		&a.LastSyncedAttributes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	a.Realm = realm.Realm(realmName)
	return a, nil
}

// Insert creates a new account
func (r *PostgresRepository) Insert(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	attrs := a.LastSyncedAttributes
	if attrs == nil {
		attrs = map[string]string{}
	}

	query := `
		INSERT INTO sso_accounts (
			id, realm, external_id, identifier, email, full_name, first_name, last_name,
			enabled, locked, locked_until, failed_attempts, login_allowed,
			active_from, active_until, last_login_at, last_synced_attributes,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)`
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Realm.String(),
		a.ExternalID,
		a.Identifier,
		a.Email,
		a.FullName,
		a.FirstName,
		a.LastName,
		a.Enabled,
		a.Locked,
		a.LockedUntil,
		a.FailedAttempts,
		a.LoginAllowed,
		a.ActiveFrom,
		a.ActiveUntil,
		a.LastLoginAt,
		attrs,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Update writes every mutable column of an existing account
func (r *PostgresRepository) Update(ctx context.Context, a *Account) error {
	attrs := a.LastSyncedAttributes
	if attrs == nil {
		attrs = map[string]string{}
	}

	query := `
		UPDATE sso_accounts SET
			identifier = $2, email = $3, full_name = $4, first_name = $5, last_name = $6,
			enabled = $7, locked = $8, locked_until = $9, failed_attempts = $10,
			login_allowed = $11, active_from = $12, active_until = $13,
			last_login_at = $14, last_synced_attributes = $15, updated_at = $16
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Identifier,
		a.Email,
		a.FullName,
		a.FirstName,
		a.LastName,
		a.Enabled,
		a.Locked,
		a.LockedUntil,
		a.FailedAttempts,
		a.LoginAllowed,
		a.ActiveFrom,
		a.ActiveUntil,
		a.LastLoginAt,
		attrs,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
