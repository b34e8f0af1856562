// internal/domain/identity/entity.go
package identity

import (
	"database/sql"
	"time"
)

// Domain is an independent namespace of accounts. A session minted in one
// domain never authenticates a request scoped to the other.
type Domain string

const (
	ShopOwner Domain = "shopowner"
	SiteUser  Domain = "siteuser"
)

// Identity represents one account within a single domain.
type Identity struct {
	ID           string       `json:"id" db:"id"`
	Email        string       `json:"email" db:"email"`
	PasswordHash string       `json:"-" db:"password_hash"`
	DisplayName  string       `json:"name" db:"display_name"`
	Verified     bool         `json:"verified" db:"verified"`
	VerifiedAt   sql.NullTime `json:"-" db:"verified_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Token kinds. Verification codes and reset tokens have independent
// lifecycles, so they are separate rows rather than fields on the identity.
type TokenKind string

const (
	TokenVerify TokenKind = "verify"
	TokenReset  TokenKind = "reset"
)

// Token is a single-use, time-bounded credential token.
type Token struct {
	ID         string       `json:"id" db:"id"`
	Domain     Domain       `json:"domain" db:"domain"`
	Kind       TokenKind    `json:"kind" db:"kind"`
	IdentityID string       `json:"identity_id" db:"identity_id"`
	Value      string       `json:"-" db:"value"`
	ExpiresAt  time.Time    `json:"expires_at" db:"expires_at"`
	UsedAt     sql.NullTime `json:"-" db:"used_at"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// Expired reports whether the token's lifetime has elapsed at now.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
