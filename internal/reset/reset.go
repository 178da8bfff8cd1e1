// Package reset implements the single-use, time-boxed password reset flow.
// Only the sha256 of a token is ever stored; the plaintext leaves the
// process exactly once, inside the reset email.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sl "vidstream/internal/lib/logger"
	"vidstream/internal/models"
	"vidstream/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")

type Service struct {
	log         *slog.Logger
	store       Storage
	pub         Publisher
	tokenTTL    time.Duration
	frontendURL string
	now         func() time.Time
}

type Storage interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
	SetResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, userID int64) error
	CompletePasswordReset(ctx context.Context, tokenHash string, passHash []byte, now time.Time) error
}

type Publisher interface {
	SendMessage(ctx context.Context, msg models.EmailMessage) error
}

func New(
	log *slog.Logger,
	store Storage,
	pub Publisher,
	tokenTTL time.Duration,
	frontendURL string,
) *Service {
	return &Service{
		log:         log,
		store:       store,
		pub:         pub,
		tokenTTL:    tokenTTL,
		frontendURL: frontendURL,
		now:         time.Now,
	}
}

// Request issues a reset token for the given email and hands the plaintext
// to the mail queue. An unknown address returns nil so the response is
// indistinguishable from the known-address case. A delivery failure rolls
// the stored token back, so no dangling token is ever left active.
func (s *Service) Request(ctx context.Context, email string) error {
	const op = "reset.Request"

	log := s.log.With(slog.String("op", op))

	user, err := s.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("reset requested for unknown email")
			return nil
		}

		log.Error("failed to look up user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	plaintext, err := newToken()
	if err != nil {
		log.Error("failed to generate reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	expiresAt := s.now().Add(s.tokenTTL)

	if err := s.store.SetResetToken(ctx, user.ID, hashToken(plaintext), expiresAt); err != nil {
		log.Error("failed to store reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.frontendURL, plaintext)

	msg := models.EmailMessage{
		Email:   user.Email,
		Subject: "Password reset request",
		HTML:    resetEmailHTML(resetURL, user.Username),
	}

	if err := s.pub.SendMessage(ctx, msg); err != nil {
		log.Error("failed to publish reset email, rolling back token", sl.Err(err))

		if clearErr := s.store.ClearResetToken(ctx, user.ID); clearErr != nil {
			log.Error("failed to roll back reset token", sl.Err(clearErr))
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reset token issued", slog.Int64("uid", user.ID))

	return nil
}

// Complete exchanges a plaintext token for a new password. The conditional
// write that sets the password also clears the reset fields and the stored
// refresh credential, so a token works once and every open session is
// forced to re-authenticate.
func (s *Service) Complete(ctx context.Context, plaintext, newPassword string) error {
	const op = "reset.Complete"

	log := s.log.With(slog.String("op", op))

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.store.CompletePasswordReset(ctx, hashToken(plaintext), passHash, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("invalid or expired reset token presented")
			return ErrInvalidOrExpiredToken
		}

		log.Error("failed to complete reset", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset completed")

	return nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

func hashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func resetEmailHTML(resetURL, username string) string {
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your password. The link below is valid for a short time and works once:</p>
<p><a href="%s">Reset your password</a></p>
<p>If you did not request this, you can ignore this email.</p>`,
		username, resetURL)
}
