package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const defaultLockWait = 5 * time.Second

// MemoryStore is a concurrency-safe in-memory Store. It backs development
// mode and tests. Each wallet has its own lock; a unit acquires the locks it
// needs in ascending wallet-id order and buffers its writes until Commit, so
// Rollback discards everything exactly like a database transaction would.
type MemoryStore struct {
	mu       sync.RWMutex
	wallets  map[string]Wallet
	byOwner  map[string]string
	entries  map[string][]Entry
	locks    map[string]chan struct{}
	lockWait time.Duration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:  make(map[string]Wallet),
		byOwner:  make(map[string]string),
		entries:  make(map[string][]Entry),
		locks:    make(map[string]chan struct{}),
		lockWait: defaultLockWait,
	}
}

// CreateWallet registers a new wallet.
func (s *MemoryStore) CreateWallet(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.ID]; exists {
		return fmt.Errorf("wallet %s already exists", w.ID)
	}
	if _, exists := s.byOwner[w.OwnerID]; exists {
		return fmt.Errorf("owner %s already has a wallet", w.OwnerID)
	}
	s.wallets[w.ID] = w
	s.byOwner[w.OwnerID] = w.ID
	return nil
}

// WalletByID returns the wallet without locking; the snapshot may trail
// in-flight units.
func (s *MemoryStore) WalletByID(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

// WalletByOwner returns the wallet belonging to ownerID.
func (s *MemoryStore) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.wallets[id], nil
}

// EntriesForWallet returns the wallet's entries, newest first.
func (s *MemoryStore) EntriesForWallet(_ context.Context, walletID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.entries[walletID]
	out := make([]Entry, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

// Begin opens a new atomic unit.
func (s *MemoryStore) Begin(_ context.Context) (Tx, error) {
	return &memoryTx{
		store:    s,
		balances: make(map[string]decimal.Decimal),
	}, nil
}

func (s *MemoryStore) lockFor(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

func (s *MemoryStore) acquire(ctx context.Context, l chan struct{}) error {
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: lock wait exceeded %s", ErrStoreUnavailable, s.lockWait)
	}
}

func (s *MemoryStore) release(ids []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		<-s.locks[id]
	}
}

type memoryTx struct {
	store    *MemoryStore
	held     []string
	balances map[string]decimal.Decimal
	staged   []Entry
	done     bool
}

func (t *memoryTx) WalletsForUpdate(ctx context.Context, ids ...string) (map[string]Wallet, error) {
	if t.done {
		return nil, fmt.Errorf("%w: unit already closed", ErrStoreUnavailable)
	}

	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	for _, id := range sorted {
		if t.holds(id) {
			continue
		}
		if err := t.store.acquire(ctx, t.store.lockFor(id)); err != nil {
			t.releaseAll()
			return nil, err
		}
		t.held = append(t.held, id)
	}

	t.store.mu.RLock()
	out := make(map[string]Wallet, len(ids))
	missing := false
	for _, id := range ids {
		w, ok := t.store.wallets[id]
		if !ok {
			missing = true
			break
		}
		out[id] = w
	}
	t.store.mu.RUnlock()

	if missing {
		t.releaseAll()
		return nil, ErrWalletNotFound
	}
	return out, nil
}

func (t *memoryTx) SetBalance(_ context.Context, walletID string, balance decimal.Decimal) error {
	if t.done {
		return fmt.Errorf("%w: unit already closed", ErrStoreUnavailable)
	}
	if !t.holds(walletID) {
		return fmt.Errorf("wallet %s not locked in this unit", walletID)
	}
	if balance.IsNegative() {
		return fmt.Errorf("balance for wallet %s would be negative", walletID)
	}
	t.balances[walletID] = balance
	return nil
}

func (t *memoryTx) AppendEntry(_ context.Context, e Entry) error {
	if t.done {
		return fmt.Errorf("%w: unit already closed", ErrStoreUnavailable)
	}
	t.staged = append(t.staged, e)
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("%w: unit already closed", ErrStoreUnavailable)
	}

	t.store.mu.Lock()
	now := time.Now().UTC()
	for id, balance := range t.balances {
		w := t.store.wallets[id]
		w.Balance = balance
		w.UpdatedAt = now
		t.store.wallets[id] = w
	}
	for _, e := range t.staged {
		t.store.entries[e.WalletID] = append(t.store.entries[e.WalletID], e)
	}
	t.store.mu.Unlock()

	t.done = true
	t.store.release(t.held)
	t.held = nil
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.releaseAll()
	return nil
}

func (t *memoryTx) holds(id string) bool {
	for _, held := range t.held {
		if held == id {
			return true
		}
	}
	return false
}

func (t *memoryTx) releaseAll() {
	t.store.release(t.held)
	t.held = nil
}
