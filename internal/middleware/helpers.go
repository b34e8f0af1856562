// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
)

// GetIdentity gets the resolved identity from context
func GetIdentity(c *gin.Context) (*identity.Identity, bool) {
	val, exists := c.Get(ctxIdentity)
	if !exists {
		return nil, false
	}

	rec, ok := val.(*identity.Identity)
	if !ok {
		return nil, false
	}
	return rec, true
}

// MustGetIdentity gets the resolved identity from context or panics.
// Only call behind RequireSession.
func MustGetIdentity(c *gin.Context) *identity.Identity {
	rec, exists := GetIdentity(c)
	if !exists {
		panic("identity not found in context")
	}
	return rec
}

// GetSessionID gets the verified session id from context
func GetSessionID(c *gin.Context) (string, bool) {
	val, exists := c.Get(ctxSessionID)
	if !exists {
		return "", false
	}

	sid, ok := val.(string)
	if !ok {
		return "", false
	}
	return sid, true
}

// IsAuthenticated checks if request carries a resolved session
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxIdentity)
	return exists
}
