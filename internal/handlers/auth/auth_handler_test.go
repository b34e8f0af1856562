package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
	"github.com/Gayashan123/ck-host-auth/internal/middleware"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/apperr"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/session"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/sessioncookie"
	authUsecase "github.com/Gayashan123/ck-host-auth/internal/service/auth"
)

// In-memory stores mirroring the postgres repositories' contracts.

type memCreds struct {
	mu   sync.Mutex
	rows map[string]*identity.Identity
	seq  int
}

func newMemCreds() *memCreds { return &memCreds{rows: make(map[string]*identity.Identity)} }

func (m *memCreds) Create(_ context.Context, rec *identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == rec.Email {
			return apperr.ErrEmailTaken
		}
	}
	m.seq++
	rec.ID = fmt.Sprintf("id-%04d", m.seq)
	clone := *rec
	m.rows[rec.ID] = &clone
	return nil
}

func (m *memCreds) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == email {
			clone := *r
			return &clone, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memCreds) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCreds) FindByID(_ context.Context, id string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (m *memCreds) MarkVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return apperr.ErrNotFound
	}
	r.Verified = true
	return nil
}

func (m *memCreds) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return apperr.ErrNotFound
	}
	r.PasswordHash = hash
	return nil
}

func (m *memCreds) UpdateProfile(_ context.Context, id, name, email string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	for otherID, other := range m.rows {
		if otherID != id && other.Email == email {
			return nil, apperr.ErrEmailTaken
		}
	}
	r.DisplayName = name
	r.Email = email
	clone := *r
	return &clone, nil
}

type memTokens struct {
	mu   sync.Mutex
	rows []*identity.Token
}

func (m *memTokens) Issue(_ context.Context, tok *identity.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if !(row.Domain == tok.Domain && row.Kind == tok.Kind && row.IdentityID == tok.IdentityID && !row.UsedAt.Valid) {
			kept = append(kept, row)
		}
	}
	clone := *tok
	m.rows = append(kept, &clone)
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

func (m *memTokens) latest(kind identity.TokenKind) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Kind == kind && !m.rows[i].UsedAt.Valid {
			return m.rows[i].Value
		}
	}
	return ""
}

type nullSender struct{}

func (nullSender) Send(to, subject, body string) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testRig struct {
	router *gin.Engine
	tokens *memTokens
	attrs  sessioncookie.Attributes
	codec  *sessioncookie.Codec
}

func newTestRig(t *testing.T, dom identity.Domain, prefix, cookieName string) *testRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := session.NewStore(rdb, 7*24*time.Hour)
	codec := sessioncookie.NewCodec("test-secret")
	attrs := sessioncookie.ForEnvironment("development", cookieName, "", 7*24*time.Hour)

	tokens := &memTokens{}
	mailer := authUsecase.NewMailer(nullSender{}, zap.NewNop(), "http://localhost:5173", "/reset-password", "CK Host")
	svc := authUsecase.NewService(authUsecase.DomainConfig{
		Domain:      dom,
		DisplayName: string(dom),
	}, newMemCreds(), tokens, store, mailer, zap.NewNop())

	sm := middleware.NewSessionMiddleware(svc, attrs, codec, zap.NewNop())
	handler := NewAuthHandler(svc, attrs, codec, zap.NewNop())

	router := gin.New()
	g := router.Group(prefix)
	g.Use(sm.Resolve())
	g.POST("/signup", handler.Signup)
	g.POST("/verify-email", handler.VerifyEmail)
	g.POST("/resend-verification", handler.ResendVerification)
	g.POST("/login", handler.Login)
	g.POST("/logout", handler.Logout)
	g.POST("/forgot-password", handler.ForgotPassword)
	g.POST("/reset-password/:token", handler.ResetPassword)
	g.GET("/check-auth", handler.CheckAuth)
	protected := g.Group("")
	protected.Use(sm.RequireSession())
	protected.POST("/change-password", handler.ChangePassword)
	protected.POST("/update-profile", handler.UpdateProfile)

	return &testRig{router: router, tokens: tokens, attrs: attrs, codec: codec}
}

func (r *testRig) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	r.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestSignupDoesNotSetCookie(t *testing.T) {
	rig := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")

	rec, env := rig.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "owner@example.com", "password": "s3cret-pass", "name": "Owner",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)
	require.Empty(t, rec.Result().Cookies())
}

func TestVerifyEmailSetsHTTPOnlyCookie(t *testing.T) {
	rig := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")

	rig.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "owner@example.com", "password": "s3cret-pass", "name": "Owner",
	})

	rec, env := rig.do(t, http.MethodPost, "/api/auth/verify-email", gin.H{
		"code": rig.tokens.latest(identity.TokenVerify),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	ck := sessionCookie(t, rec, "shopowner_session")
	require.True(t, ck.HttpOnly)
	require.NotEmpty(t, ck.Value)

	// The cookie value is signed; the raw session id alone must not verify.
	_, err := rig.codec.Decode("forged-session-id.bogus")
	require.Error(t, err)
}

func TestLoginFailuresShareAStatus(t *testing.T) {
	rig := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")

	rig.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "owner@example.com", "password": "s3cret-pass", "name": "Owner",
	})
	rig.do(t, http.MethodPost, "/api/auth/verify-email", gin.H{
		"code": rig.tokens.latest(identity.TokenVerify),
	})

	recUnknown, envUnknown := rig.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email": "ghost@example.com", "password": "s3cret-pass",
	})
	recWrong, envWrong := rig.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email": "owner@example.com", "password": "nope-nope",
	})

	require.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	require.Equal(t, http.StatusUnauthorized, recWrong.Code)
	require.Equal(t, envUnknown.Message, envWrong.Message)
}

func TestLoginBeforeVerificationIsForbidden(t *testing.T) {
	rig := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")

	rig.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "owner@example.com", "password": "s3cret-pass", "name": "Owner",
	})

	rec, _ := rig.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email": "owner@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestCheckAuthAnonymousIsOK(t *testing.T) {
	rig := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")

	rec, env := rig.do(t, http.MethodGet, "/api/auth/check-auth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	require.Nil(t, env.Data)

	// Tampered cookie resolves to anonymous, not an error.
	rec, env = rig.do(t, http.MethodGet, "/api/auth/check-auth", nil, &http.Cookie{
		Name: "shopowner_session", Value: "tampered.signature",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, env.Data)
}

func TestLogoutClearsCookie(t *testing.T) {
	rig := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")

	rig.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "owner@example.com", "password": "s3cret-pass", "name": "Owner",
	})
	verifyRec, _ := rig.do(t, http.MethodPost, "/api/auth/verify-email", gin.H{
		"code": rig.tokens.latest(identity.TokenVerify),
	})
	ck := sessionCookie(t, verifyRec, "shopowner_session")

	rec, env := rig.do(t, http.MethodPost, "/api/auth/logout", nil, ck)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	cleared := sessionCookie(t, rec, "shopowner_session")
	require.Less(t, cleared.MaxAge, 0)

	// The session is gone server-side too.
	checkRec, checkEnv := rig.do(t, http.MethodGet, "/api/auth/check-auth", nil, ck)
	require.Equal(t, http.StatusOK, checkRec.Code)
	require.Nil(t, checkEnv.Data)

	// Logout with no session at all still succeeds.
	again, _ := rig.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, again.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	rig := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")

	rec, env := rig.do(t, http.MethodPost, "/api/auth/change-password", gin.H{
		"currentPassword": "a-password", "newPassword": "b-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, env.Success)

	rec, _ = rig.do(t, http.MethodPost, "/api/auth/update-profile", gin.H{
		"name": "New Name", "email": "new@example.com",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePasswordFlow(t *testing.T) {
	rig := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")

	rig.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "owner@example.com", "password": "s3cret-pass", "name": "Owner",
	})
	verifyRec, _ := rig.do(t, http.MethodPost, "/api/auth/verify-email", gin.H{
		"code": rig.tokens.latest(identity.TokenVerify),
	})
	ck := sessionCookie(t, verifyRec, "shopowner_session")

	rec, _ := rig.do(t, http.MethodPost, "/api/auth/change-password", gin.H{
		"currentPassword": "wrong-pass", "newPassword": "new-pass-123",
	}, ck)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = rig.do(t, http.MethodPost, "/api/auth/change-password", gin.H{
		"currentPassword": "s3cret-pass", "newPassword": "new-pass-123",
	}, ck)
	require.Equal(t, http.StatusOK, rec.Code)

	loginRec, _ := rig.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"email": "owner@example.com", "password": "new-pass-123",
	})
	require.Equal(t, http.StatusOK, loginRec.Code)
}

func TestResetPasswordTokenTravelsInURL(t *testing.T) {
	rig := newTestRig(t, identity.SiteUser, "/api/siteuser", "siteuser_session")

	rig.do(t, http.MethodPost, "/api/siteuser/signup", gin.H{
		"email": "user@example.com", "password": "old-password", "name": "User",
	})
	rig.do(t, http.MethodPost, "/api/siteuser/verify-email", gin.H{
		"code": rig.tokens.latest(identity.TokenVerify),
	})

	rec, _ := rig.do(t, http.MethodPost, "/api/siteuser/forgot-password", gin.H{
		"email": "user@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	tok := rig.tokens.latest(identity.TokenReset)
	require.NotEmpty(t, tok)

	rec, env := rig.do(t, http.MethodPost, "/api/siteuser/reset-password/"+tok, gin.H{
		"password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	require.Empty(t, rec.Result().Cookies())

	// Replay of the consumed token.
	rec, _ = rig.do(t, http.MethodPost, "/api/siteuser/reset-password/"+tok, gin.H{
		"password": "another-pass",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForgotPasswordNeverRevealsAccounts(t *testing.T) {
	rig := newTestRig(t, identity.SiteUser, "/api/siteuser", "siteuser_session")

	rig.do(t, http.MethodPost, "/api/siteuser/signup", gin.H{
		"email": "user@example.com", "password": "s3cret-pass", "name": "User",
	})

	recKnown, envKnown := rig.do(t, http.MethodPost, "/api/siteuser/forgot-password", gin.H{
		"email": "user@example.com",
	})
	recUnknown, envUnknown := rig.do(t, http.MethodPost, "/api/siteuser/forgot-password", gin.H{
		"email": "ghost@example.com",
	})

	require.Equal(t, recKnown.Code, recUnknown.Code)
	require.Equal(t, envKnown.Message, envUnknown.Message)
}

func TestCookiesDoNotCrossDomainPrefixes(t *testing.T) {
	owner := newTestRig(t, identity.ShopOwner, "/api/auth", "shopowner_session")
	user := newTestRig(t, identity.SiteUser, "/api/siteuser", "siteuser_session")

	owner.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "owner@example.com", "password": "s3cret-pass", "name": "Owner",
	})
	verifyRec, _ := owner.do(t, http.MethodPost, "/api/auth/verify-email", gin.H{
		"code": owner.tokens.latest(identity.TokenVerify),
	})
	ck := sessionCookie(t, verifyRec, "shopowner_session")

	// Presenting the shop owner cookie to the site user surface stays
	// anonymous: different cookie name, different session namespace.
	rec, env := user.do(t, http.MethodGet, "/api/siteuser/check-auth", nil, ck)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, env.Data)
}
