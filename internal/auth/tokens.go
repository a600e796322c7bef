// Package auth issues and verifies HS256 access tokens carrying the caller identity.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload: subject is the user id, Email feeds ACL checks.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses access tokens.
type Manager struct {
	key    []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewManager constructs a token manager.
func NewManager(key []byte, ttl time.Duration) *Manager {
	return &Manager{key: key, ttl: ttl, leeway: 30 * time.Second, now: time.Now}
}

// Issue creates a signed token for u.
func (m *Manager) Issue(u model.User) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.key)
	return signed, exp, err
}

// Verify parses tok and returns the caller it identifies.
// Every failure wraps errs.ErrUnauthorized.
func (m *Manager) Verify(tok string) (model.Caller, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithLeeway(m.leeway), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return model.Caller{}, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return model.Caller{}, errs.ErrUnauthorized
	}
	return model.Caller{UID: id.String(), Email: claims.Email}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	v := strings.TrimSpace(header)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, true
		}
	}
	return "", false
}
