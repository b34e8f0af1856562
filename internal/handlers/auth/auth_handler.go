// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
	"github.com/Gayashan123/ck-host-auth/internal/middleware"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/response"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/sessioncookie"
	authUsecase "github.com/Gayashan123/ck-host-auth/internal/service/auth"
)

// AuthHandler exposes one identity domain's credential lifecycle over HTTP.
// Two instances are mounted, one per domain, each with its own cookie name.
type AuthHandler struct {
	authService *authUsecase.Service
	cookieAttrs sessioncookie.Attributes
	codec       *sessioncookie.Codec
	logger      *zap.Logger
}

func NewAuthHandler(
	authService *authUsecase.Service,
	cookieAttrs sessioncookie.Attributes,
	codec *sessioncookie.Codec,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookieAttrs: cookieAttrs,
		codec:       codec,
		logger:      logger,
	}
}

// ========== Registration ==========

// Signup creates an unverified account and emails the verification code.
// No cookie is set; the client stays anonymous until the code is redeemed.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req identity.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	rec, err := h.authService.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.logger.Error("signup failed",
			zap.String("domain", string(h.authService.Domain())),
			zap.Error(err),
		)
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "verification code sent", gin.H{"user": rec.Public()})
}

// VerifyEmail redeems the emailed code and establishes the session.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req identity.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	rec, sess, err := h.authService.VerifyEmail(c.Request.Context(), req.Code)
	if err != nil {
		response.FromError(c, err)
		return
	}

	sessioncookie.Issue(c.Writer, h.cookieAttrs, h.codec, sess.SessionID)
	response.Success(c, http.StatusOK, "email verified", gin.H{"user": rec.Public()})
}

// ResendVerification re-issues the signup code. Always success-shaped.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req identity.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.authService.ResendVerification(c.Request.Context(), req.Email); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "if the account exists, a code has been sent", nil)
}

// ========== Login / Logout ==========

// Login authenticates and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req identity.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	rec, sess, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("domain", string(h.authService.Domain())),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		response.FromError(c, err)
		return
	}

	sessioncookie.Issue(c.Writer, h.cookieAttrs, h.codec, sess.SessionID)
	response.Success(c, http.StatusOK, "login successful", gin.H{"user": rec.Public()})
}

// Logout destroys the session and clears the cookie. Safe to call without
// a session; the outcome is the same either way.
func (h *AuthHandler) Logout(c *gin.Context) {
	if sid, ok := middleware.GetSessionID(c); ok {
		if err := h.authService.Logout(c.Request.Context(), sid); err != nil {
			response.Error(c, http.StatusInternalServerError, "logout failed", err)
			return
		}
	}

	sessioncookie.Clear(c.Writer, h.cookieAttrs)
	response.Success(c, http.StatusOK, "logout successful", nil)
}

// ========== Password Management ==========

// ForgotPassword starts the reset flow. The response never reveals whether
// the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req identity.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "if the account exists, a reset link has been sent", nil)
}

// ResetPassword completes the reset flow. The token travels in the URL, the
// new password in the body. No session is established; callers log in again.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req identity.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "password reset successful", nil)
}

// ChangePassword replaces the password for the authenticated identity
// (requires session).
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req identity.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	rec := middleware.MustGetIdentity(c)
	if err := h.authService.ChangePassword(c.Request.Context(), rec.ID, req.CurrentPassword, req.NewPassword); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "password changed", nil)
}

// ========== Profile ==========

// UpdateProfile updates name and email (requires session).
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req identity.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	rec := middleware.MustGetIdentity(c)
	updated, err := h.authService.UpdateProfile(c.Request.Context(), rec.ID, req.Name, req.Email)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "profile updated", gin.H{"user": updated.Public()})
}

// ========== Session Introspection ==========

// CheckAuth reports the current session's identity. Anonymous requests get
// a success response with no user, never a 401; clients use this to decide
// which UI to render.
func (h *AuthHandler) CheckAuth(c *gin.Context) {
	if rec, ok := middleware.GetIdentity(c); ok {
		response.Success(c, http.StatusOK, "authenticated", gin.H{"user": rec.Public()})
		return
	}

	response.Success(c, http.StatusOK, "not authenticated", nil)
}
