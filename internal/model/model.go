// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server.
type User struct {
	ID        uuid.UUID // PK, becomes the caller uid
	Email     string    // unique, used for ACL membership
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// Caller is the authenticated identity attached to a request.
// The zero value is an anonymous caller.
type Caller struct {
	UID   string
	Email string
}

// Authenticated reports whether the caller carries a user id.
func (c Caller) Authenticated() bool { return c.UID != "" }

// Attributes returns the caller in the shape the rule engine sees as `auth`.
// Anonymous callers yield nil so that `auth != null` is false.
func (c Caller) Attributes() map[string]any {
	if !c.Authenticated() {
		return nil
	}
	m := map[string]any{"uid": c.UID}
	if c.Email != "" {
		m["email"] = c.Email
	}
	return m
}
