package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/medizone/internal/errs"
)

// Tokens issues and verifies HS256 access tokens whose subject is the document owner.
type Tokens struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewTokens constructs a token service. A non-positive ttl defaults to 30 days.
func NewTokens(signKey []byte, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Tokens{signKey: signKey, ttl: ttl, now: time.Now}
}

// Issue creates a signed token for owner.
func (t *Tokens) Issue(owner string) (string, time.Time, error) {
	if owner == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	now := t.now()
	exp := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.signKey)
	return signed, exp, err
}

// Parse verifies token and returns its subject. Failures wrap errs.ErrUnauthorized.
func (t *Tokens) Parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tk *jwt.Token) (any, error) {
		if tk.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", errs.ErrUnauthorized)
	}
	return claims.Subject, nil
}
