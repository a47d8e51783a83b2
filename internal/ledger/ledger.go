package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount rejects operations whose amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance occurs when a wallet lacks funds to cover a
	// withdrawal or outgoing transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrWalletNotFound indicates the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrRecipientNotFound indicates the transfer recipient could not be resolved.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrSelfTransfer rejects transfers where sender and recipient are the same wallet.
	ErrSelfTransfer = errors.New("cannot transfer to own wallet")

	// ErrCurrencyMismatch rejects transfers between wallets of different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrStoreUnavailable wraps persistence failures, including bounded lock
	// waits that expired. Never retried by the engine.
	ErrStoreUnavailable = errors.New("ledger store unavailable")
)

const (
	// KindDeposit marks funds entering the system from outside.
	KindDeposit = "deposit"
	// KindWithdrawal marks funds leaving the system.
	KindWithdrawal = "withdrawal"
	// KindTransfer marks a wallet-to-wallet movement; the two entries of one
	// transfer share a TransferRef.
	KindTransfer = "transfer"

	// DirectionIn and DirectionOut tag the two sides of a transfer entry.
	DirectionIn  = "in"
	DirectionOut = "out"

	// StatusCompleted is the only entry status this ledger produces; there is
	// no pending settlement state.
	StatusCompleted = "completed"
)

// Wallet holds the balance for one owner. Balances are fixed-point decimals
// and are only ever mutated through Engine operations.
type Wallet struct {
	ID        string
	OwnerID   string
	Balance   decimal.Decimal
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is one immutable, append-only audit record of a balance-affecting
// event. Amount is always positive; Direction distinguishes the two sides of
// a transfer.
type Entry struct {
	ID          string
	WalletID    string
	Kind        string
	Direction   string
	Amount      decimal.Decimal
	Description string
	Status      string
	TransferRef string
	CreatedAt   time.Time
}
