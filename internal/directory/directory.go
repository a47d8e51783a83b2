// Package directory resolves recipient-facing identifiers (email addresses)
// to wallet ids. Resolution is a plain read; it never takes ledger locks.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasa-pay/kasa_pay/internal/identity"
	"github.com/kasa-pay/kasa_pay/internal/ledger"
)

// Postgres resolves emails through a users-to-wallets join.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres builds a Postgres-backed directory.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// ResolveEmail returns the wallet id owned by the user registered under email.
func (d *Postgres) ResolveEmail(ctx context.Context, email string) (string, error) {
	row := d.db.QueryRow(ctx, `SELECT w.id FROM wallets w
        INNER JOIN users u ON u.id = w.owner_id
        WHERE u.email = $1`, strings.TrimSpace(strings.ToLower(email)))
	var walletID uuid.UUID
	if err := row.Scan(&walletID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ledger.ErrRecipientNotFound
		}
		return "", err
	}
	return walletID.String(), nil
}

// Memory resolves emails by chaining the in-memory user repository and wallet
// store, mirroring the Postgres join. Development and tests only.
type Memory struct {
	users   identity.Repository
	wallets ledger.Store
}

// NewMemory builds an in-memory directory.
func NewMemory(users identity.Repository, wallets ledger.Store) *Memory {
	return &Memory{users: users, wallets: wallets}
}

// ResolveEmail returns the wallet id owned by the user registered under email.
func (d *Memory) ResolveEmail(ctx context.Context, email string) (string, error) {
	user, err := d.users.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return "", ledger.ErrRecipientNotFound
	}
	w, err := d.wallets.WalletByOwner(ctx, user.ID)
	if err != nil {
		return "", ledger.ErrRecipientNotFound
	}
	return w.ID, nil
}
