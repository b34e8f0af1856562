package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/apperr"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/session"
)

// memCredentials is an in-memory CredentialStore for one domain.
type memCredentials struct {
	mu   sync.Mutex
	byID map[string]*identity.Identity
	seq  int
}

func newMemCredentials() *memCredentials {
	return &memCredentials{byID: make(map[string]*identity.Identity)}
}

func (m *memCredentials) Create(_ context.Context, rec *identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if existing.Email == rec.Email {
			return apperr.ErrEmailTaken
		}
	}

	m.seq++
	rec.ID = fmt.Sprintf("id-%04d", m.seq)
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt

	clone := *rec
	m.byID[rec.ID] = &clone
	return nil
}

func (m *memCredentials) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.byID {
		if rec.Email == email {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memCredentials) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.byID {
		if rec.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCredentials) FindByID(_ context.Context, id string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memCredentials) MarkVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	rec.Verified = true
	return nil
}

func (m *memCredentials) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	rec.PasswordHash = hash
	return nil
}

func (m *memCredentials) UpdateProfile(_ context.Context, id, name, email string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	for otherID, other := range m.byID {
		if otherID != id && other.Email == email {
			return nil, apperr.ErrEmailTaken
		}
	}
	rec.DisplayName = name
	rec.Email = email
	clone := *rec
	return &clone, nil
}

// memTokens is an in-memory TokenStore with the same latest-wins and
// consume-once semantics as the postgres repository.
type memTokens struct {
	mu   sync.Mutex
	rows []*identity.Token
}

func newMemTokens() *memTokens {
	return &memTokens{}
}

func (m *memTokens) Issue(_ context.Context, tok *identity.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.rows[:0]
	for _, row := range m.rows {
		superseded := row.Domain == tok.Domain && row.Kind == tok.Kind &&
			row.IdentityID == tok.IdentityID && !row.UsedAt.Valid
		if !superseded {
			kept = append(kept, row)
		}
	}
	m.rows = kept

	clone := *tok
	clone.CreatedAt = time.Now()
	m.rows = append(m.rows, &clone)
	return nil
}

func (m *memTokens) Consume(_ context.Context, domain identity.Domain, kind identity.TokenKind, value string) (*identity.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Domain == domain && row.Kind == kind && row.Value == value && !row.UsedAt.Valid {
			row.UsedAt.Valid = true
			row.UsedAt.Time = time.Now()
			clone := *row
			return &clone, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// latest returns the newest unconsumed token value for an identity, i.e.
// what the email would have carried.
func (m *memTokens) latest(kind identity.TokenKind, identityID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.rows) - 1; i >= 0; i-- {
		row := m.rows[i]
		if row.Kind == kind && row.IdentityID == identityID && !row.UsedAt.Valid {
			return row.Value
		}
	}
	return ""
}

// expireAll backdates every token of a kind so redemption hits the expiry
// path.
func (m *memTokens) expireAll(kind identity.TokenKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Kind == kind {
			row.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

// stubSender records sends; hard failures are toggled per template subject.
type stubSender struct {
	mu     sync.Mutex
	sent    []string // subjects, in order
	failAll bool
}

func (s *stubSender) Send(to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll {
		return errTransport
	}
	s.sent = append(s.sent, subject)
	return nil
}

var errTransport = errors.New("smtp unavailable")

type testEnv struct {
	svc    *Service
	creds  *memCredentials
	tokens *memTokens
	sender *stubSender
	redis  *miniredis.Miniredis
	store  *session.Store
}

func newTestEnv(t *testing.T, domain identity.Domain) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(rdb, 7*24*time.Hour)

	creds := newMemCredentials()
	tokens := newMemTokens()
	sender := &stubSender{}
	mailer := NewMailer(sender, zap.NewNop(), "http://localhost:5173", "/reset-password", "CK Host")

	svc := NewService(DomainConfig{
		Domain:              domain,
		DisplayName:         string(domain),
		VerificationCodeTTL: 15 * time.Minute,
		ResetTokenTTL:       time.Hour,
	}, creds, tokens, store, mailer, zap.NewNop())

	return &testEnv{svc: svc, creds: creds, tokens: tokens, sender: sender, redis: mr, store: store}
}
