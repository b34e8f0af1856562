// internal/middleware/session_middleware.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gayashan123/ck-host-auth/internal/pkg/response"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/sessioncookie"
	"github.com/Gayashan123/ck-host-auth/internal/service/auth"
)

const (
	ctxIdentity  = "identity"
	ctxSessionID = "session_id"
)

// SessionMiddleware resolves the signed session cookie of one identity
// domain. Each domain's router gets its own instance with its own cookie
// name, so a shop owner session can never satisfy a site user route.
type SessionMiddleware struct {
	svc    *auth.Service
	attrs  sessioncookie.Attributes
	codec  *sessioncookie.Codec
	logger *zap.Logger
}

func NewSessionMiddleware(svc *auth.Service, attrs sessioncookie.Attributes, codec *sessioncookie.Codec, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		svc:    svc,
		attrs:  attrs,
		codec:  codec,
		logger: logger,
	}
}

// Resolve attaches the identity to the context when a valid session cookie
// is present. An absent, tampered or expired cookie leaves the request
// anonymous; it never rejects.
func (m *SessionMiddleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := sessioncookie.Read(c.Request, m.attrs, m.codec)
		if err != nil {
			c.Next()
			return
		}

		rec, err := m.svc.CheckAuth(c.Request.Context(), sid)
		if err != nil {
			m.logger.Error("session resolution failed",
				zap.String("domain", string(m.svc.Domain())),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if rec == nil {
			c.Next()
			return
		}

		c.Set(ctxIdentity, rec)
		c.Set(ctxSessionID, sid)
		c.Next()
	}
}

// RequireSession rejects anonymous requests. Must run after Resolve.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			response.Unauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}
