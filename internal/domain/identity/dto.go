// internal/domain/identity/dto.go
package identity

// SignupRequest for account creation
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// VerifyEmailRequest carries the emailed numeric code
type VerifyEmailRequest struct {
	Code string `json:"code" binding:"required"`
}

// LoginRequest for authentication
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest starts the reset flow
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes the reset flow; the token travels in the URL
type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// ChangePasswordRequest for an authenticated password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// UpdateProfileRequest for authenticated profile updates
type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// ResendVerificationRequest re-issues the signup code
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// UserInfo is the identity shape returned to clients
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// Public converts an identity to its client-visible form.
func (i *Identity) Public() UserInfo {
	return UserInfo{ID: i.ID, Email: i.Email, Name: i.DisplayName, Verified: i.Verified}
}
