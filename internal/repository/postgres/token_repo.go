// internal/repository/postgres/token_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/apperr"
)

// TokenRepository persists verification codes and reset tokens as independent
// keyed rows. Both domains share the table; every statement filters on the
// domain column.
type TokenRepository struct {
	db *pgxpool.Pool
}

func NewTokenRepository(db *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{db: db}
}

// Issue stores a fresh token and removes any unconsumed token of the same
// kind for the same identity, so only the latest issue is redeemable.
func (r *TokenRepository) Issue(ctx context.Context, tok *identity.Token) error {
	const deleteQuery = `
		DELETE FROM auth_tokens
		WHERE domain = $1 AND kind = $2 AND identity_id = $3 AND used_at IS NULL
	`
	const insertQuery = `
		INSERT INTO auth_tokens (id, domain, kind, identity_id, value, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin token issue: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteQuery, tok.Domain, tok.Kind, tok.IdentityID); err != nil {
		return fmt.Errorf("failed to supersede prior tokens: %w", err)
	}

	tok.ID = ulid.Make().String()
	if err := tx.QueryRow(ctx, insertQuery,
		tok.ID, tok.Domain, tok.Kind, tok.IdentityID, tok.Value, tok.ExpiresAt,
	).Scan(&tok.CreatedAt); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return tx.Commit(ctx)
}

// Consume redeems a token value in one atomic statement. Only an unconsumed
// row matches; the same value presented twice loses the race on used_at, so a
// token can never be redeemed twice under concurrent requests. The returned
// row may already be past its expiry; the caller distinguishes expired from
// invalid.
func (r *TokenRepository) Consume(ctx context.Context, domain identity.Domain, kind identity.TokenKind, value string) (*identity.Token, error) {
	const query = `
		UPDATE auth_tokens
		SET used_at = $1
		WHERE domain = $2 AND kind = $3 AND value = $4 AND used_at IS NULL
		RETURNING id, domain, kind, identity_id, value, expires_at, used_at, created_at
	`

	var tok identity.Token
	err := r.db.QueryRow(ctx, query, time.Now(), domain, kind, value).Scan(
		&tok.ID, &tok.Domain, &tok.Kind, &tok.IdentityID,
		&tok.Value, &tok.ExpiresAt, &tok.UsedAt, &tok.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}

	return &tok, nil
}

// DeleteExpired clears tokens whose lifetime elapsed before the cutoff.
// Housekeeping only; Consume never matches them as valid.
func (r *TokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM auth_tokens WHERE expires_at < $1`

	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
