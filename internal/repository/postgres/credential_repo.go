// internal/repository/postgres/credential_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/apperr"
)

// CredentialRepository persists identity records for exactly one domain.
// Each domain gets its own instance bound to its own table, so the two
// namespaces cannot leak into each other through a forgotten WHERE clause.
type CredentialRepository struct {
	db    *pgxpool.Pool
	table string
}

var credentialTables = map[identity.Domain]string{
	identity.ShopOwner: "shop_owner_identities",
	identity.SiteUser:  "site_user_identities",
}

func NewCredentialRepository(db *pgxpool.Pool, domain identity.Domain) (*CredentialRepository, error) {
	table, ok := credentialTables[domain]
	if !ok {
		return nil, fmt.Errorf("unknown identity domain %q", domain)
	}
	return &CredentialRepository{db: db, table: table}, nil
}

// Create inserts a new unverified identity. A unique-violation on email maps
// to apperr.ErrEmailTaken.
func (r *CredentialRepository) Create(ctx context.Context, rec *identity.Identity) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, password_hash, display_name, verified)
		VALUES ($1, LOWER($2), $3, $4, false)
		RETURNING created_at, updated_at
	`, r.table)

	rec.ID = ulid.Make().String()
	err := r.db.QueryRow(ctx, query, rec.ID, rec.Email, rec.PasswordHash, rec.DisplayName).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	rec.Email = normalizeEmail(rec.Email)
	return nil
}

// FindByEmail retrieves an identity by case-normalized email.
func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, display_name, verified, verified_at, created_at, updated_at
		FROM %s
		WHERE email = LOWER($1)
	`, r.table)

	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

// ExistsByEmail reports whether any identity in the domain holds the email.
func (r *CredentialRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE email = LOWER($1))`, r.table)

	var exists bool
	if err := r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// FindByID retrieves an identity by id.
func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, display_name, verified, verified_at, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.table)

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// MarkVerified flips the identity to verified.
func (r *CredentialRepository) MarkVerified(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET verified = true, verified_at = $1, updated_at = $1
		WHERE id = $2
	`, r.table)

	tag, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark identity verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash.
func (r *CredentialRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET password_hash = $1, updated_at = $2
		WHERE id = $3
	`, r.table)

	tag, err := r.db.Exec(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UpdateProfile updates display name and email. An email collision with a
// different identity in the same domain maps to apperr.ErrEmailTaken.
func (r *CredentialRepository) UpdateProfile(ctx context.Context, id, name, email string) (*identity.Identity, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET display_name = $1, email = LOWER($2), updated_at = $3
		WHERE id = $4
		RETURNING id, email, password_hash, display_name, verified, verified_at, created_at, updated_at
	`, r.table)

	rec, err := r.scanOne(r.db.QueryRow(ctx, query, name, email, time.Now(), id))
	if err != nil && isUniqueViolation(err) {
		return nil, apperr.ErrEmailTaken
	}
	return rec, err
}

func (r *CredentialRepository) scanOne(row pgx.Row) (*identity.Identity, error) {
	var rec identity.Identity
	err := row.Scan(
		&rec.ID, &rec.Email, &rec.PasswordHash, &rec.DisplayName,
		&rec.Verified, &rec.VerifiedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan identity: %w", err)
	}
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
