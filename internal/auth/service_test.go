package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kasa-pay/kasa_pay/internal/config"
)

func testService(ttl time.Duration) *Service {
	return NewService(config.Config{JWTSecret: "test-secret", AccessTokenTTL: ttl})
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := testService(time.Hour)

	token, expiresIn, err := svc.Issue("user-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if expiresIn != 3600 {
		t.Fatalf("expected 3600s lifetime, got %d", expiresIn)
	}

	sub, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("expected subject user-42, got %q", sub)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc := testService(time.Hour)

	token, _, err := svc.Issue("user-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + parts[2][:len(parts[2])-2] + "xx"

	if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := testService(time.Hour)
	verifier := NewService(config.Config{JWTSecret: "other-secret", AccessTokenTTL: time.Hour})

	token, _, err := issuer.Issue("user-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := testService(-time.Minute)

	token, _, err := svc.Issue("user-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := testService(time.Hour)
	for _, token := range []string{"", "a.b", "not-a-token", "a.b.c"} {
		if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}
