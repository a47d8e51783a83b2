package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgLockNotAvailable = "55P03"

// PostgresStore persists wallets and ledger entries in PostgreSQL. Atomic
// units map to database transactions with row-level FOR UPDATE locks, taken
// in ascending wallet-id order with a bounded lock_timeout.
type PostgresStore struct {
	db       *pgxpool.Pool
	lockWait time.Duration
}

// NewPostgresStore builds a store backed by the given pool. lockWait bounds
// how long a unit may wait on a contended row before failing.
func NewPostgresStore(db *pgxpool.Pool, lockWait time.Duration) *PostgresStore {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	return &PostgresStore{db: db, lockWait: lockWait}
}

// CreateWallet inserts a wallet record.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, balance, currency, created_at, updated_at)
        VALUES ($1, $2, $3::numeric, $4, $5, $6)`,
		walletID, ownerID, w.Balance.String(), w.Currency, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// WalletByID fetches a wallet without locking it.
func (s *PostgresStore) WalletByID(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, balance::text, currency, created_at, updated_at
        FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// WalletByOwner fetches the wallet belonging to ownerID.
func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, balance::text, currency, created_at, updated_at
        FROM wallets WHERE owner_id = $1`, owner)
	return scanWallet(row)
}

// EntriesForWallet lists the wallet's ledger entries, newest first. seq is a
// monotonic insert counter, so the order is total even within one commit.
func (s *PostgresStore) EntriesForWallet(ctx context.Context, walletID string) ([]Entry, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, kind, direction, amount::text, description, status,
            COALESCE(transfer_ref::text, ''), created_at
        FROM transactions WHERE wallet_id = $1 ORDER BY seq DESC`, id)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			entryID   uuid.UUID
			wID       uuid.UUID
			amount    string
			createdAt time.Time
		)
		if err := rows.Scan(&entryID, &wID, &e.Kind, &e.Direction, &amount, &e.Description, &e.Status, &e.TransferRef, &createdAt); err != nil {
			return nil, classifyStoreError(err)
		}
		e.ID = entryID.String()
		e.WalletID = wID.String()
		e.CreatedAt = createdAt.UTC()
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, classifyStoreError(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(err)
	}
	return entries, nil
}

// Begin opens a database transaction with the bounded lock wait applied.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockWait.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return nil, classifyStoreError(err)
	}
	return &postgresTx{tx: tx}, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) WalletsForUpdate(ctx context.Context, ids ...string) (map[string]Wallet, error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	out := make(map[string]Wallet, len(ids))
	for _, id := range sorted {
		if _, seen := out[id]; seen {
			continue
		}
		walletID, err := uuid.Parse(id)
		if err != nil {
			return nil, ErrWalletNotFound
		}
		row := t.tx.QueryRow(ctx, `SELECT id, owner_id, balance::text, currency, created_at, updated_at
            FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
		w, err := scanWallet(row)
		if err != nil {
			return nil, err
		}
		out[id] = w
	}
	return out, nil
}

func (t *postgresTx) SetBalance(ctx context.Context, walletID string, balance decimal.Decimal) error {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return ErrWalletNotFound
	}
	cmd, err := t.tx.Exec(ctx, `UPDATE wallets SET balance = $1::numeric, updated_at = now() WHERE id = $2`,
		balance.String(), id)
	if err != nil {
		return classifyStoreError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (t *postgresTx) AppendEntry(ctx context.Context, e Entry) error {
	entryID, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("invalid entry id: %w", err)
	}
	walletID, err := uuid.Parse(e.WalletID)
	if err != nil {
		return ErrWalletNotFound
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO transactions (id, wallet_id, kind, direction, amount, description, status, transfer_ref, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, NULLIF($8, '')::uuid, $9)`,
		entryID, walletID, e.Kind, e.Direction, e.Amount.String(), e.Description, e.Status, e.TransferRef, e.CreatedAt.UTC())
	if err != nil {
		return classifyStoreError(err)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return classifyStoreError(err)
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		ownerID   uuid.UUID
		balance   string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &ownerID, &balance, &w.Currency, &createdAt, &updatedAt); err != nil {
		return Wallet{}, classifyStoreError(err)
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	var err error
	if w.Balance, err = decimal.NewFromString(balance); err != nil {
		return Wallet{}, classifyStoreError(err)
	}
	return w, nil
}

func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrWalletNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: lock wait timed out", ErrStoreUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
