// internal/service/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/apperr"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/session"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/token"
)

const verificationCodeDigits = 6

// DomainConfig parameterizes one Service instance for an identity domain.
// The two domains run the same state machine over disjoint stores; a single
// generic engine keeps them from drifting apart.
type DomainConfig struct {
	Domain      identity.Domain
	DisplayName string // used in email copy, e.g. "shop owner"

	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
}

// Service is the auth protocol engine for one identity domain. It owns the
// Anonymous -> PendingVerification -> Verified -> Authenticated transitions;
// handlers translate HTTP to these calls and back.
type Service struct {
	cfg      DomainConfig
	creds    CredentialStore
	tokens   TokenStore
	sessions *session.Store
	mailer   *Mailer
	logger   *zap.Logger
}

func NewService(
	cfg DomainConfig,
	creds CredentialStore,
	tokens TokenStore,
	sessions *session.Store,
	mailer *Mailer,
	logger *zap.Logger,
) *Service {
	if cfg.VerificationCodeTTL <= 0 {
		cfg.VerificationCodeTTL = 15 * time.Minute
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}

	return &Service{
		cfg:      cfg,
		creds:    creds,
		tokens:   tokens,
		sessions: sessions,
		mailer:   mailer,
		logger:   logger,
	}
}

// Domain returns the identity domain this engine serves.
func (s *Service) Domain() identity.Domain {
	return s.cfg.Domain
}

// Signup creates an unverified identity and emails a verification code. No
// session is established; the identity stays in PendingVerification until
// the code is redeemed.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*identity.Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" || name == "" {
		return nil, apperr.ErrValidation
	}

	taken, err := s.creds.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, apperr.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	rec := &identity.Identity{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  name,
	}
	if err := s.creds.Create(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.issueVerificationCode(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("identity registered",
		zap.String("domain", string(s.cfg.Domain)),
		zap.String("identity_id", rec.ID),
	)

	return rec, nil
}

// ResendVerification issues a fresh code for an unverified identity,
// invalidating the previous one. Unknown and already-verified emails succeed
// silently, same enumeration policy as ForgotPassword.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	rec, err := s.creds.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Verified {
		return nil
	}

	return s.issueVerificationCode(ctx, rec)
}

// issueVerificationCode persists a new code and dispatches the verification
// email. Delivery here is a hard dependency; on failure the persisted code
// stays valid until its expiry, so a retried send does not reissue it.
func (s *Service) issueVerificationCode(ctx context.Context, rec *identity.Identity) error {
	code, err := token.NumericCode(verificationCodeDigits)
	if err != nil {
		return err
	}

	tok := &identity.Token{
		Domain:     s.cfg.Domain,
		Kind:       identity.TokenVerify,
		IdentityID: rec.ID,
		Value:      code,
		ExpiresAt:  time.Now().Add(s.cfg.VerificationCodeTTL),
	}
	if err := s.tokens.Issue(ctx, tok); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	if err := s.mailer.SendVerificationCode(rec.Email, rec.DisplayName, code); err != nil {
		s.logger.Error("verification email failed",
			zap.String("domain", string(s.cfg.Domain)),
			zap.String("identity_id", rec.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", apperr.ErrEmailDelivery, err)
	}

	return nil
}

// VerifyEmail redeems a verification code, marks the identity verified and
// establishes a session. The code is consumed atomically: a replay fails
// even if the first redemption and the replay race.
func (s *Service) VerifyEmail(ctx context.Context, code string) (*identity.Identity, *session.Record, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, apperr.ErrInvalidCode
	}

	tok, err := s.tokens.Consume(ctx, s.cfg.Domain, identity.TokenVerify, code)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil, apperr.ErrInvalidCode
	}
	if err != nil {
		return nil, nil, err
	}
	if tok.Expired(time.Now()) {
		return nil, nil, apperr.ErrExpiredToken
	}

	if err := s.creds.MarkVerified(ctx, tok.IdentityID); err != nil {
		return nil, nil, err
	}

	rec, err := s.creds.FindByID(ctx, tok.IdentityID)
	if err != nil {
		return nil, nil, err
	}

	// Best-effort; a failed welcome email never rolls back verification.
	s.mailer.SendWelcomeAsync(rec.Email, rec.DisplayName)

	sess, err := s.sessions.Create(ctx, s.cfg.Domain, rec.ID, rec.Email)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("email verified",
		zap.String("domain", string(s.cfg.Domain)),
		zap.String("identity_id", rec.ID),
	)

	return rec, sess, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password return the same error so callers cannot probe which one failed.
// An unverified identity is never granted a session.
func (s *Service) Login(ctx context.Context, email, password string) (*identity.Identity, *session.Record, error) {
	rec, err := s.creds.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperr.ErrInvalidCredentials
	}

	if !rec.Verified {
		return nil, nil, apperr.ErrNotVerified
	}

	sess, err := s.sessions.Create(ctx, s.cfg.Domain, rec.ID, rec.Email)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("login",
		zap.String("domain", string(s.cfg.Domain)),
		zap.String("identity_id", rec.ID),
	)

	return rec, sess, nil
}

// Logout destroys the session. Idempotent; logging out with no active
// session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, s.cfg.Domain, sessionID)
}

// ForgotPassword starts the reset flow. The outcome is success-shaped
// whether or not the email is registered, so responses cannot be used to
// enumerate accounts. Issuing a new token invalidates any earlier one.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	rec, err := s.creds.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	value, err := token.Opaque()
	if err != nil {
		return err
	}

	tok := &identity.Token{
		Domain:     s.cfg.Domain,
		Kind:       identity.TokenReset,
		IdentityID: rec.ID,
		Value:      value,
		ExpiresAt:  time.Now().Add(s.cfg.ResetTokenTTL),
	}
	if err := s.tokens.Issue(ctx, tok); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(rec.Email, rec.DisplayName, value); err != nil {
		s.logger.Error("reset email failed",
			zap.String("domain", string(s.cfg.Domain)),
			zap.String("identity_id", rec.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", apperr.ErrEmailDelivery, err)
	}

	return nil
}

// ResetPassword redeems a reset token and replaces the password hash. The
// caller must log in again afterwards; no session is established here.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	if tokenValue == "" || newPassword == "" {
		return apperr.ErrValidation
	}

	tok, err := s.tokens.Consume(ctx, s.cfg.Domain, identity.TokenReset, tokenValue)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if tok.Expired(time.Now()) {
		return apperr.ErrExpiredToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.creds.UpdatePasswordHash(ctx, tok.IdentityID, string(hash)); err != nil {
		return err
	}

	if rec, err := s.creds.FindByID(ctx, tok.IdentityID); err == nil {
		s.mailer.SendResetConfirmationAsync(rec.Email, rec.DisplayName)
	}

	s.logger.Info("password reset",
		zap.String("domain", string(s.cfg.Domain)),
		zap.String("identity_id", tok.IdentityID),
	)

	return nil
}

// ChangePassword replaces the hash for an authenticated identity. A wrong
// current password leaves the stored hash untouched.
func (s *Service) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return apperr.ErrValidation
	}

	rec, err := s.creds.FindByID(ctx, identityID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(currentPassword)); err != nil {
		return apperr.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.creds.UpdatePasswordHash(ctx, rec.ID, string(hash))
}

// UpdateProfile updates name and email for an authenticated identity.
func (s *Service) UpdateProfile(ctx context.Context, identityID, name, email string) (*identity.Identity, error) {
	email = normalizeEmail(email)
	if name == "" || email == "" {
		return nil, apperr.ErrValidation
	}

	if existing, err := s.creds.FindByEmail(ctx, email); err == nil && existing.ID != identityID {
		return nil, apperr.ErrEmailTaken
	} else if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	return s.creds.UpdateProfile(ctx, identityID, name, email)
}

// CheckAuth resolves a session reference to its identity. Anonymous is a
// normal terminal state: missing, expired and foreign sessions all return
// (nil, nil), never an error.
func (s *Service) CheckAuth(ctx context.Context, sessionID string) (*identity.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}

	sess, err := s.sessions.Resolve(ctx, s.cfg.Domain, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec, err := s.creds.FindByID(ctx, sess.IdentityID)
	if errors.Is(err, apperr.ErrNotFound) {
		// Session outlived its identity; treat as anonymous.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
