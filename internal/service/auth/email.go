// internal/service/auth/email.go
package auth

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Gayashan123/ck-host-auth/internal/service/email"
)

// Mailer builds and dispatches the four auth email kinds for one domain.
// Verification-code and reset-link sends are hard dependencies of their
// flows and return errors; welcome and confirmation are fire-and-forget.
type Mailer struct {
	sender      email.Sender
	logger      *zap.Logger
	appBaseURL  string
	resetPath   string
	displayName string
}

func NewMailer(sender email.Sender, logger *zap.Logger, appBaseURL, resetPath, displayName string) *Mailer {
	return &Mailer{
		sender:      sender,
		logger:      logger,
		appBaseURL:  appBaseURL,
		resetPath:   resetPath,
		displayName: displayName,
	}
}

/// SendVerificationCode emails the signup code. Synchronous: the caller
// propagates failure as an email delivery error.
func (m *Mailer) SendVerificationCode(to, name, code string) error {
	subject := "Verify Your Email"
	body := fmt.Sprintf(`
		<h2>Email Verification</h2>
		<p>Hello %s,</p>
		<p>Your verification code is:</p>
		<p class="code">%s</p>
		<p>This code will expire in 15 minutes.</p>
	`, name, code)

	return m.sender.Send(to, subject, body)
}

// SendPasswordReset emails the reset link. Synchronous, hard dependency.
func (m *Mailer) SendPasswordReset(to, name, tokenValue string) error {
	resetURL := fmt.Sprintf("%s%s/%s", m.appBaseURL, m.resetPath, tokenValue)

	subject := "Password Reset Request"
	body := fmt.Sprintf(`
		<h2>Password Reset</h2>
		<p>Hello %s,</p>
		<p>We received a request to reset your password. Click the button below to proceed:</p>
		<p><a class="button" href="%s">Reset Password</a></p>
		<p>If you didn't request this, please ignore this email.</p>
		<p>This link will expire in 1 hour.</p>
	`, name, resetURL)

	return m.sender.Send(to, subject, body)
}

// SendWelcomeAsync emails the post-verification welcome. Failures are
// logged, never propagated.
func (m *Mailer) SendWelcomeAsync(to, name string) {
	subject := fmt.Sprintf("Welcome to %s!", m.displayName)
	body := fmt.Sprintf(`
		<h2>Welcome, %s!</h2>
		<p>Your account is now verified and ready to use.</p>
		<p>Thank you for joining us!</p>
	`, name)

	go func() {
		if err := m.sender.Send(to, subject, body); err != nil {
			m.logger.Error("failed to send welcome email",
				zap.String("email", to),
				zap.Error(err),
			)
		}
	}()
}

// SendResetConfirmationAsync notifies that the password was changed via the
// reset flow. Failures are logged, never propagated.
func (m *Mailer) SendResetConfirmationAsync(to, name string) {
	subject := "Password Reset Successful"
	body := fmt.Sprintf(`
		<h2>Password Updated</h2>
		<p>Hello %s,</p>
		<p>Your password has been successfully changed.</p>
		<p>If you didn't make this change, please contact us immediately.</p>
	`, name)

	go func() {
		if err := m.sender.Send(to, subject, body); err != nil {
			m.logger.Error("failed to send reset confirmation email",
				zap.String("email", to),
				zap.Error(err),
			)
		}
	}()
}
