package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the durable home of wallets and their transaction log. Balance
// mutations happen exclusively inside a Tx; the read methods are a separate
// non-transactional path that may observe slightly stale data.
type Store interface {
	CreateWallet(ctx context.Context, w Wallet) error
	WalletByID(ctx context.Context, id string) (Wallet, error)
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)
	// EntriesForWallet returns the wallet's ledger entries, newest first.
	EntriesForWallet(ctx context.Context, walletID string) ([]Entry, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit. Balance writes and entry appends issued through the
// same Tx commit or abort together. Rollback after Commit is a no-op, so it
// is safe to defer unconditionally.
type Tx interface {
	// WalletsForUpdate locks the given wallets for the remainder of the unit
	// and returns their current state. Locks are always acquired in ascending
	// wallet-id order regardless of the order ids are passed in; that fixed
	// order is what keeps reciprocal transfers from deadlocking. A lock wait
	// exceeding the store's bound fails with ErrStoreUnavailable.
	WalletsForUpdate(ctx context.Context, ids ...string) (map[string]Wallet, error)
	// SetBalance writes a new balance for a wallet previously locked by
	// WalletsForUpdate within this unit.
	SetBalance(ctx context.Context, walletID string, balance decimal.Decimal) error
	// AppendEntry records a ledger entry within this unit.
	AppendEntry(ctx context.Context, e Entry) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
