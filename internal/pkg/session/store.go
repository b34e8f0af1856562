// internal/pkg/session/store.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/token"
)

// ErrNotFound is returned when a session id does not resolve in the caller's
// domain. Missing, expired and foreign-domain sessions are indistinguishable.
var ErrNotFound = errors.New("session not found")

// Record is the server-side session payload. The transport cookie carries
// only the session id.
type Record struct {
	SessionID  string          `json:"session_id"`
	Domain     identity.Domain `json:"domain"`
	IdentityID string          `json:"identity_id"`
	Email      string          `json:"email"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Store maps opaque session ids to identity references in Redis. The TTL is
// fixed at creation; Resolve never extends it, so an idle and an active
// session expire at the same moment. Redis key expiry is the garbage
// collector.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// TTL returns the fixed session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create mints a new session for the given identity and stores it under the
// domain's namespace. Multiple concurrent sessions per identity are allowed
// and independent.
func (s *Store) Create(ctx context.Context, domain identity.Domain, identityID, email string) (*Record, error) {
	sid, err := token.SessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now()
	rec := &Record{
		SessionID:  sid,
		Domain:     domain,
		IdentityID: identityID,
		Email:      email,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(domain, sid), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return rec, nil
}

// Resolve looks up a session id within a domain. A record whose embedded
// domain does not match the key namespace is treated as not found.
func (s *Store) Resolve(ctx context.Context, domain identity.Domain, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.key(domain, sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if rec.Domain != domain {
		return nil, ErrNotFound
	}

	// Redis should have expired the key already; guard against clock skew.
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrNotFound
	}

	return &rec, nil
}

// Destroy removes a session. Destroying an unknown or empty id is a no-op.
func (s *Store) Destroy(ctx context.Context, domain identity.Domain, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(domain, sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (s *Store) key(domain identity.Domain, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", domain, sessionID)
}
