package auth

import (
	"errors"
	"time"

	"github.com/kasa-pay/kasa_pay/internal/config"
)

// ErrInvalidToken covers every token verification failure.
var ErrInvalidToken = errors.New("invalid or expired token")

// Service issues and verifies access tokens. The ledger never sees a raw
// credential; everything downstream works from the user id this service
// extracts.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService builds the token service from configuration.
func NewService(cfg config.Config) *Service {
	return &Service{secret: []byte(cfg.JWTSecret), ttl: cfg.AccessTokenTTL}
}

// Issue signs an access token for the user. Returns the token and its
// lifetime in seconds.
func (s *Service) Issue(userID string) (string, int64, error) {
	now := time.Now()
	claims := map[string]any{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	token, err := SignHS256(claims, s.secret)
	if err != nil {
		return "", 0, err
	}
	return token, int64(s.ttl.Seconds()), nil
}

// Verify checks signature and expiry and returns the authenticated user id.
func (s *Service) Verify(token string) (string, error) {
	claims, err := ParseAndVerifyHS256(token, s.secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	exp, _ := claims["exp"].(float64)
	if int64(exp) < time.Now().Unix() {
		return "", ErrInvalidToken
	}
	return sub, nil
}
