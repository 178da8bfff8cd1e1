package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidstream/internal/models"
	"vidstream/internal/storage"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, username, full_name, password_hash, avatar_url, cover_url,
		refresh_token, reset_token_hash, reset_token_expires_at, created_at`

func (r *PostgresRepo) SaveUser(ctx context.Context, email, username, fullName string, passHash []byte) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, username, full_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, email, username, fullName, string(passHash)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

// UserByLogin resolves a user by email or username, both stored lowercase.
func (r *PostgresRepo) UserByLogin(ctx context.Context, login string) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 OR username = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, login))
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// UpdateRefreshToken replaces the stored refresh credential in a single
// write; nil clears it. Rotation and logout both go through here.
func (r *PostgresRepo) UpdateRefreshToken(ctx context.Context, userID int64, token *string) error {
	const op = "storage.postgres.UpdateRefreshToken"

	query := `UPDATE users SET refresh_token = $2 WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, userID int64, passHash []byte) error {
	const op = "storage.postgres.UpdatePassword"

	query := `UPDATE users SET password_hash = $2 WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, query, userID, string(passHash))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) SetResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	const op = "storage.postgres.SetResetToken"

	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expires_at = $3
		WHERE id = $1;
	`

	tag, err := r.pool.Exec(ctx, query, userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) ClearResetToken(ctx context.Context, userID int64) error {
	const op = "storage.postgres.ClearResetToken"

	query := `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE id = $1;
	`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CompletePasswordReset sets the new password and clears the reset fields in
// one conditional write. The match on the token hash plus unexpired expiry is
// what makes the token single-use: the winning write removes the fields, so a
// replay finds no row. The stored refresh credential dies on the same write,
// forcing every outstanding session to re-authenticate.
func (r *PostgresRepo) CompletePasswordReset(ctx context.Context, tokenHash string, passHash []byte, now time.Time) error {
	const op = "storage.postgres.CompletePasswordReset"

	query := `
		UPDATE users
		SET password_hash = $2,
			reset_token_hash = NULL,
			reset_token_expires_at = NULL,
			refresh_token = NULL
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $3;
	`

	tag, err := r.pool.Exec(ctx, query, tokenHash, string(passHash), now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (r *PostgresRepo) UserExists(ctx context.Context, id int64) (bool, error) {
	const op = "storage.postgres.UserExists"

	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1);`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FullName,
		&u.PassHash,
		&u.AvatarURL,
		&u.CoverURL,
		&u.RefreshToken,
		&u.ResetTokenHash,
		&u.ResetTokenExpiresAt,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}
