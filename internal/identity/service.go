package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/kasa-pay/kasa_pay/internal/ledger"
)

var (
	// ErrInvalidCredentials is the single outcome for every authentication
	// failure. Wrong password and unknown email are deliberately not
	// distinguished so login attempts cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// WalletCreator provisions the wallet that every new user receives at
// onboarding. Satisfied by ledger.Store.
type WalletCreator interface {
	CreateWallet(ctx context.Context, w ledger.Wallet) error
}

// Service manages the user lifecycle. Registration provisions a zero-balance
// wallet; after that, balances move only through the ledger engine.
type Service struct {
	repo     Repository
	wallets  WalletCreator
	currency string
}

// NewService creates a new identity service. currency is the wallet currency
// assigned at onboarding.
func NewService(repo Repository, wallets WalletCreator, currency string) *Service {
	return &Service{repo: repo, wallets: wallets, currency: currency}
}

// Register creates a new user with a hashed password and a zero-balance wallet.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, errors.New("a valid email is required")
	}
	if len(creds.Password) < 8 {
		return User{}, errors.New("password must be at least 8 characters")
	}
	if strings.TrimSpace(creds.FullName) == "" {
		return User{}, errors.New("full name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(creds.FullName),
		PasswordHash: hash,
		CreatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	if err := s.wallets.CreateWallet(ctx, ledger.Wallet{
		ID:        uuid.NewString(),
		OwnerID:   user.ID,
		Balance:   decimal.Zero,
		Currency:  s.currency,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate verifies credentials. Every failure path reports the same
// generic error.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(creds.Email)))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
