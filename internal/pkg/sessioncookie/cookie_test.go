package sessioncookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret")

	value := codec.Encode("session-123")
	sid, err := codec.Decode(value)
	require.NoError(t, err)
	require.Equal(t, "session-123", sid)
}

func TestDecodeRejectsTampering(t *testing.T) {
	codec := NewCodec("test-secret")
	value := codec.Encode("session-123")

	cases := map[string]string{
		"swapped id":     "session-456" + value[len("session-123"):],
		"truncated sig":  value[:len(value)-2],
		"no separator":   "session-123",
		"empty":          "",
		"trailing dot":   "session-123.",
		"foreign secret": NewCodec("other-secret").Encode("session-123"),
	}

	for name, v := range cases {
		_, err := codec.Decode(v)
		require.ErrorIs(t, err, ErrBadSignature, name)
	}
}

// Cross-origin production deployments lose the session on every request
// unless the cookie is Secure, SameSite=None and scoped to the serving
// domain. This pins the deployment matrix.
func TestForEnvironmentProduction(t *testing.T) {
	attrs := ForEnvironment("production", "siteuser_session", ".example.app", 7*24*time.Hour)

	require.True(t, attrs.Secure)
	require.Equal(t, http.SameSiteNoneMode, attrs.SameSite)
	require.Equal(t, ".example.app", attrs.Domain)
	require.Equal(t, 7*24*time.Hour, attrs.MaxAge)
}

func TestForEnvironmentDevelopment(t *testing.T) {
	attrs := ForEnvironment("development", "siteuser_session", ".example.app", time.Hour)

	require.False(t, attrs.Secure)
	require.Equal(t, http.SameSiteLaxMode, attrs.SameSite)
	require.Empty(t, attrs.Domain)
}

func TestIssueReadClear(t *testing.T) {
	codec := NewCodec("test-secret")
	attrs := ForEnvironment("development", "siteuser_session", "", time.Hour)

	rec := httptest.NewRecorder()
	Issue(rec, attrs, codec, "session-123")

	res := rec.Result()
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	require.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	sid, err := Read(req, attrs, codec)
	require.NoError(t, err)
	require.Equal(t, "session-123", sid)

	clearRec := httptest.NewRecorder()
	Clear(clearRec, attrs)
	cleared := clearRec.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Negative(t, cleared[0].MaxAge)
}

func TestReadWithoutCookieIsAnonymous(t *testing.T) {
	codec := NewCodec("test-secret")
	attrs := ForEnvironment("development", "siteuser_session", "", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sid, err := Read(req, attrs, codec)
	require.ErrorIs(t, err, ErrBadSignature)
	require.Empty(t, sid)
}
