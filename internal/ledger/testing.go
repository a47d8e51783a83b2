package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedBalance is a test helper that sets a wallet's balance directly when the
// store is the in-memory implementation.
func SeedBalance(s Store, walletID string, balance decimal.Decimal) {
	if mem, ok := s.(*MemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[walletID]
		w.Balance = balance
		mem.wallets[walletID] = w
	}
}

// SetLockWait is a test helper that shortens the in-memory store's bounded
// lock wait so contention tests finish quickly.
func SetLockWait(s Store, d time.Duration) {
	if mem, ok := s.(*MemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.lockWait = d
	}
}
