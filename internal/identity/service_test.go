package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/kasa-pay/kasa_pay/internal/ledger"
)

func newService(t *testing.T) (*Service, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	return NewService(NewMemoryRepository(), store, "USD"), store
}

func TestRegisterProvisionsZeroBalanceWallet(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Email: "Amina@example.com", Password: "correct-horse", FullName: "Amina Diallo"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "amina@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}

	w, err := store.WalletByOwner(ctx, user.ID)
	if err != nil {
		t.Fatalf("wallet by owner: %v", err)
	}
	if !w.Balance.IsZero() {
		t.Fatalf("new wallet balance ought to be zero, got %s", w.Balance)
	}
	if w.Currency != "USD" {
		t.Fatalf("unexpected currency %q", w.Currency)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		creds Credentials
	}{
		{"missing email", Credentials{Password: "longenough", FullName: "A B"}},
		{"malformed email", Credentials{Email: "not-an-email", Password: "longenough", FullName: "A B"}},
		{"short password", Credentials{Email: "a@b.com", Password: "short", FullName: "A B"}},
		{"missing name", Credentials{Email: "a@b.com", Password: "longenough", FullName: "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.creds); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	creds := Credentials{Email: "amina@example.com", Password: "correct-horse", FullName: "Amina Diallo"}
	if _, err := svc.Register(ctx, creds); err != nil {
		t.Fatalf("first register: %v", err)
	}

	creds.Email = "AMINA@example.com"
	if _, err := svc.Register(ctx, creds); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "amina@example.com", Password: "correct-horse", FullName: "Amina Diallo"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, unknownErr := svc.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "whatever123"})
	_, wrongErr := svc.Authenticate(ctx, Credentials{Email: "amina@example.com", Password: "wrong-password"})
	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both paths, got %v and %v", unknownErr, wrongErr)
	}

	user, err := svc.Authenticate(ctx, Credentials{Email: " Amina@Example.com ", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "amina@example.com" {
		t.Fatalf("unexpected user %q", user.Email)
	}
}
