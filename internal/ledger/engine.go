package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasa-pay/kasa_pay/internal/notification"
)

// Directory resolves a recipient-facing identifier (an email address) to a
// wallet id. Resolution happens before any locks are taken.
type Directory interface {
	ResolveEmail(ctx context.Context, email string) (string, error)
}

// Engine orchestrates all balance-affecting operations. Every operation runs
// inside a single Store atomic unit: the balance write and the log append
// commit or abort together, and locks are released on every exit path.
type Engine struct {
	store     Store
	directory Directory
	notifier  notification.Notifier
}

// NewEngine builds a ledger engine. The directory may be nil if transfers are
// not exposed; the notifier may be nil, in which case no completion notices
// are sent.
func NewEngine(store Store, directory Directory, notifier notification.Notifier) *Engine {
	return &Engine{store: store, directory: directory, notifier: notifier}
}

// Deposit credits amount to the wallet and records a deposit entry.
func (e *Engine) Deposit(ctx context.Context, walletID string, amount decimal.Decimal) (Wallet, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return Wallet{}, ErrInvalidAmount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	wallets, err := tx.WalletsForUpdate(ctx, walletID)
	if err != nil {
		return Wallet{}, err
	}
	w := wallets[walletID]

	now := time.Now().UTC()
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = now
	if err := tx.SetBalance(ctx, w.ID, w.Balance); err != nil {
		return Wallet{}, err
	}
	if err := tx.AppendEntry(ctx, Entry{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Kind:        KindDeposit,
		Amount:      amount,
		Description: "Deposit funds",
		Status:      StatusCompleted,
		CreatedAt:   now,
	}); err != nil {
		return Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Withdraw debits amount from the wallet and records a withdrawal entry. The
// balance check happens after the row is locked; checking earlier would allow
// concurrent withdrawals to overdraw.
func (e *Engine) Withdraw(ctx context.Context, walletID string, amount decimal.Decimal) (Wallet, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return Wallet{}, ErrInvalidAmount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	wallets, err := tx.WalletsForUpdate(ctx, walletID)
	if err != nil {
		return Wallet{}, err
	}
	w := wallets[walletID]

	if w.Balance.Cmp(amount) < 0 {
		return Wallet{}, ErrInsufficientBalance
	}

	now := time.Now().UTC()
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = now
	if err := tx.SetBalance(ctx, w.ID, w.Balance); err != nil {
		return Wallet{}, err
	}
	if err := tx.AppendEntry(ctx, Entry{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Kind:        KindWithdrawal,
		Amount:      amount,
		Description: "Withdraw funds",
		Status:      StatusCompleted,
		CreatedAt:   now,
	}); err != nil {
		return Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Transfer moves amount from the sender's wallet to the wallet owned by
// recipientEmail. Both balance writes and both log entries commit as one
// atomic unit; partial application is impossible. The recipient is resolved
// before the unit begins so no I/O happens while locks are held.
func (e *Engine) Transfer(ctx context.Context, senderWalletID, recipientEmail string, amount decimal.Decimal) (Wallet, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return Wallet{}, ErrInvalidAmount
	}
	if e.directory == nil {
		return Wallet{}, fmt.Errorf("%w: no account directory configured", ErrStoreUnavailable)
	}

	recipientWalletID, err := e.directory.ResolveEmail(ctx, recipientEmail)
	if err != nil {
		return Wallet{}, err
	}
	if recipientWalletID == senderWalletID {
		return Wallet{}, ErrSelfTransfer
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// One call locks both rows; the store orders the acquisitions by wallet
	// id, so a concurrent reverse transfer takes the same order and cannot
	// deadlock against this one.
	wallets, err := tx.WalletsForUpdate(ctx, senderWalletID, recipientWalletID)
	if err != nil {
		return Wallet{}, err
	}
	sender := wallets[senderWalletID]
	recipient := wallets[recipientWalletID]

	if sender.Currency != recipient.Currency {
		return Wallet{}, ErrCurrencyMismatch
	}
	if sender.Balance.Cmp(amount) < 0 {
		return Wallet{}, ErrInsufficientBalance
	}

	now := time.Now().UTC()
	sender.Balance = sender.Balance.Sub(amount)
	sender.UpdatedAt = now
	recipient.Balance = recipient.Balance.Add(amount)
	recipient.UpdatedAt = now

	if err := tx.SetBalance(ctx, sender.ID, sender.Balance); err != nil {
		return Wallet{}, err
	}
	if err := tx.SetBalance(ctx, recipient.ID, recipient.Balance); err != nil {
		return Wallet{}, err
	}

	ref := uuid.NewString()
	if err := tx.AppendEntry(ctx, Entry{
		ID:          uuid.NewString(),
		WalletID:    sender.ID,
		Kind:        KindTransfer,
		Direction:   DirectionOut,
		Amount:      amount,
		Description: "Transfer sent",
		Status:      StatusCompleted,
		TransferRef: ref,
		CreatedAt:   now,
	}); err != nil {
		return Wallet{}, err
	}
	if err := tx.AppendEntry(ctx, Entry{
		ID:          uuid.NewString(),
		WalletID:    recipient.ID,
		Kind:        KindTransfer,
		Direction:   DirectionIn,
		Amount:      amount,
		Description: "Transfer received",
		Status:      StatusCompleted,
		TransferRef: ref,
		CreatedAt:   now,
	}); err != nil {
		return Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}

	// Best effort only; delivery failure or latency is invisible to the caller.
	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:      notification.KindTransferCompleted,
			Recipient: recipientEmail,
			Amount:    amount,
			Currency:  sender.Currency,
			Body:      fmt.Sprintf("You received %s %s", amount.String(), sender.Currency),
		})
	}

	return sender, nil
}

// History returns the wallet's ledger entries, newest first. No locks are
// taken; the read may trail in-flight units.
func (e *Engine) History(ctx context.Context, walletID string) ([]Entry, error) {
	if _, err := e.store.WalletByID(ctx, walletID); err != nil {
		return nil, err
	}
	return e.store.EntriesForWallet(ctx, walletID)
}
