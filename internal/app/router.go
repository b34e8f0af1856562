// internal/app/router.go
package app

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter mounts the two identity domains. Both expose the same route
// shape; only the prefix, the backing stores and the cookie name differ.
func SetupRouter(r *gin.Engine, shopOwner, siteUser *DomainMount) {
	// ==================== Health Check ====================
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ==================== Shop Owner ====================
	mountDomainRoutes(r.Group("/api/auth"), shopOwner)

	// ==================== Site User ====================
	mountDomainRoutes(r.Group("/api/siteuser"), siteUser)
}

func mountDomainRoutes(g *gin.RouterGroup, m *DomainMount) {
	// Every route resolves the cookie first; public routes simply ignore an
	// absent session. Logout uses the resolved session id when present.
	g.Use(m.Session.Resolve())

	// Public
	g.POST("/signup", m.Handler.Signup)
	g.POST("/verify-email", m.Handler.VerifyEmail)
	g.POST("/resend-verification", m.Handler.ResendVerification)
	g.POST("/login", m.Handler.Login)
	g.POST("/logout", m.Handler.Logout)
	g.POST("/forgot-password", m.Handler.ForgotPassword)
	g.POST("/reset-password/:token", m.Handler.ResetPassword)
	g.GET("/check-auth", m.Handler.CheckAuth)

	// Authenticated
	protected := g.Group("")
	protected.Use(m.Session.RequireSession())
	{
		protected.POST("/change-password", m.Handler.ChangePassword)
		protected.POST("/update-profile", m.Handler.UpdateProfile)
	}
}
