// internal/service/auth/stores.go
package auth

import (
	"context"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
)

// CredentialStore persists identity records for one domain. The postgres
// implementation binds each instance to its own table; tests use an
// in-memory fake.
type CredentialStore interface {
	Create(ctx context.Context, rec *identity.Identity) error
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByID(ctx context.Context, id string) (*identity.Identity, error)
	MarkVerified(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id, name, email string) (*identity.Identity, error)
}

// TokenStore persists verification codes and reset tokens. Consume must be
// atomic: the same value redeemed twice succeeds at most once, regardless of
// concurrency.
type TokenStore interface {
	Issue(ctx context.Context, tok *identity.Token) error
	Consume(ctx context.Context, domain identity.Domain, kind identity.TokenKind, value string) (*identity.Token, error)
}
