// Package auth issues, verifies and rotates the platform's credentials.
//
// The refresh credential is a signed token that is additionally bound to the
// single value stored on the user record: presenting one that no longer
// matches the stored value means it was rotated out, and the holder is
// treated as unauthorized. That keeps exactly one refresh credential valid
// per identity at any instant.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	libjwt "vidstream/internal/lib/jwt"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/models"
	"vidstream/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrRefreshRevoked     = errors.New("refresh token revoked")
	ErrIdentityNotFound   = errors.New("identity not found")
)

type Auth struct {
	log           *slog.Logger
	usrSaver      UserSaver
	usrProvider   UserProvider
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

type UserSaver interface {
	SaveUser(ctx context.Context, email, username, fullName string, passHash []byte) (int64, error)
	UpdateRefreshToken(ctx context.Context, userID int64, token *string) error
	UpdatePassword(ctx context.Context, userID int64, passHash []byte) error
}

type UserProvider interface {
	UserByLogin(ctx context.Context, login string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	accessSecret, refreshSecret string,
	accessTTL, refreshTTL time.Duration,
) *Auth {
	return &Auth{
		log:           log,
		usrSaver:      userSaver,
		usrProvider:   userProvider,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (a *Auth) RegisterNewUser(
	ctx context.Context,
	email, username, fullName, pass string,
) (int64, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(slog.String("op", op))

	log.Info("registering new user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.ToLower(strings.TrimSpace(username))

	id, err := a.usrSaver.SaveUser(ctx, email, username, fullName, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return 0, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Login checks credentials by email or username and issues a token pair.
func (a *Auth) Login(
	ctx context.Context,
	login, password string,
) (libjwt.TokenPair, models.User, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByLogin(ctx, strings.ToLower(strings.TrimSpace(login)))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return libjwt.TokenPair{}, models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return libjwt.TokenPair{}, models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return libjwt.TokenPair{}, models.User{}, ErrInvalidCredentials
	}

	pair, err := a.Issue(ctx, user)
	if err != nil {
		return libjwt.TokenPair{}, models.User{}, err
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	user.Sanitize()

	return pair, user, nil
}

// Issue mints a fresh access/refresh pair and persists the refresh credential
// on the user record, replacing any prior value. The single write is what
// atomically invalidates the previous refresh credential.
func (a *Auth) Issue(ctx context.Context, user models.User) (libjwt.TokenPair, error) {
	const op = "auth.Issue"

	log := a.log.With(slog.String("op", op))

	accessToken, err := libjwt.NewAccessToken(user, a.accessSecret, a.accessTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return libjwt.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := libjwt.NewRefreshToken(user.ID, a.refreshSecret, a.refreshTTL)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return libjwt.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdateRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return libjwt.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return libjwt.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// VerifyAccess resolves an access token to its identity, with credential
// material stripped. All verification failures collapse into
// ErrUnauthenticated so callers never learn why a token was rejected.
func (a *Auth) VerifyAccess(ctx context.Context, token string) (models.User, error) {
	const op = "auth.VerifyAccess"

	if token == "" {
		return models.User{}, ErrUnauthenticated
	}

	userID, err := libjwt.ParseSubject(token, a.accessSecret, libjwt.PurposeAccess)
	if err != nil {
		return models.User{}, ErrUnauthenticated
	}

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrIdentityNotFound
		}

		a.log.With(slog.String("op", op)).Error("failed to load user", sl.Err(err))
		return models.User{}, err
	}

	user.Sanitize()

	return user, nil
}

// Refresh rotates the credential pair. The presented token must be
// well-formed, unexpired and exactly equal to the value stored on the user
// record; a mismatch means it was already rotated out, which is the reuse
// signal ErrRefreshRevoked reports.
func (a *Auth) Refresh(ctx context.Context, oldRefresh string) (libjwt.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	if oldRefresh == "" {
		return libjwt.TokenPair{}, ErrUnauthenticated
	}

	userID, err := libjwt.ParseSubject(oldRefresh, a.refreshSecret, libjwt.PurposeRefresh)
	if err != nil {
		log.Warn("invalid refresh token", sl.Err(err))
		return libjwt.TokenPair{}, ErrUnauthenticated
	}

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return libjwt.TokenPair{}, ErrUnauthenticated
		}

		log.Error("failed to load user", sl.Err(err))
		return libjwt.TokenPair{}, err
	}

	if user.RefreshToken == nil || *user.RefreshToken != oldRefresh {
		log.Warn("refresh token reuse detected", slog.Int64("uid", user.ID))
		return libjwt.TokenPair{}, ErrRefreshRevoked
	}

	pair, err := a.Issue(ctx, user)
	if err != nil {
		return libjwt.TokenPair{}, err
	}

	log.Info("refresh successful", slog.Int64("uid", user.ID))

	return pair, nil
}

// Logout clears the stored refresh credential. Idempotent.
func (a *Auth) Logout(ctx context.Context, userID int64) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if err := a.usrSaver.UpdateRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil
		}

		log.Error("failed to clear refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful", slog.Int64("uid", userID))

	return nil
}

func (a *Auth) ChangePassword(ctx context.Context, userID int64, oldPass, newPass string) error {
	const op = "auth.ChangePassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrIdentityNotFound
		}

		log.Error("failed to load user", sl.Err(err))
		return err
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(oldPass)); err != nil {
		return ErrInvalidCredentials
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPass), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdatePassword(ctx, userID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed", slog.Int64("uid", userID))

	return nil
}
