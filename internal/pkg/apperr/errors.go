package apperr

import (
	"errors"
	"fmt"
)

// Protocol-level errors. These are terminal for the current operation and are
// never retried by this layer; token-class failures require the caller to
// request a fresh token.
var (
	ErrValidation         = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("email not verified")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidToken       = errors.New("invalid or already used token")
	ErrEmailTaken         = errors.New("email already in use")
	ErrEmailDelivery      = errors.New("failed to send email")
	ErrNotFound           = errors.New("resource not found")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
