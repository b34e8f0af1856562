// internal/pkg/sessioncookie/cookie.go
package sessioncookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrBadSignature is returned for missing, malformed or tampered cookie
// values. Callers treat it as an anonymous request, not a failure.
var ErrBadSignature = errors.New("invalid session cookie signature")

// Codec signs and verifies session-id cookie values. The cookie value is
// "<sid>.<sig>" where sig = HMAC-SHA256(secret, sid).
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode returns the signed cookie value for a session id.
func (c *Codec) Encode(sessionID string) string {
	return sessionID + "." + c.sign(sessionID)
}

// Decode verifies a signed cookie value and returns the embedded session id.
func (c *Codec) Decode(value string) (string, error) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return "", ErrBadSignature
	}

	sid, sig := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(c.sign(sid))) {
		return "", ErrBadSignature
	}

	return sid, nil
}

func (c *Codec) sign(sessionID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Attributes carries the deployment-dependent cookie settings. Getting these
// wrong in a cross-origin production deployment silently drops the session on
// every request, so the matrix is covered by a configuration test rather than
// left to the handlers.
type Attributes struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// ForEnvironment builds the cookie attributes for a deployment environment.
// Production deployments serve the API cross-origin from the front-end, so
// the cookie must be Secure with SameSite=None and scoped to the serving
// domain; development is same-site and uses Lax with no explicit domain.
func ForEnvironment(env, name, productionDomain string, maxAge time.Duration) Attributes {
	attrs := Attributes{
		Name:     name,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}

	if env == "production" {
		attrs.Secure = true
		attrs.SameSite = http.SameSiteNoneMode
		attrs.Domain = productionDomain
	}

	return attrs
}

// Issue writes the signed session cookie to the response.
func Issue(w http.ResponseWriter, attrs Attributes, codec *Codec, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     attrs.Name,
		Value:    codec.Encode(sessionID),
		Path:     "/",
		Domain:   attrs.Domain,
		MaxAge:   int(attrs.MaxAge.Seconds()),
		Secure:   attrs.Secure,
		HttpOnly: true,
		SameSite: attrs.SameSite,
	})
}

// Clear expires the session cookie on the client.
func Clear(w http.ResponseWriter, attrs Attributes) {
	http.SetCookie(w, &http.Cookie{
		Name:     attrs.Name,
		Value:    "",
		Path:     "/",
		Domain:   attrs.Domain,
		MaxAge:   -1,
		Secure:   attrs.Secure,
		HttpOnly: true,
		SameSite: attrs.SameSite,
	})
}

// Read extracts and verifies the session id from an incoming request.
// Absent or invalid cookies return ErrBadSignature alongside an empty id.
func Read(r *http.Request, attrs Attributes, codec *Codec) (string, error) {
	ck, err := r.Cookie(attrs.Name)
	if err != nil {
		return "", ErrBadSignature
	}
	return codec.Decode(ck.Value)
}
