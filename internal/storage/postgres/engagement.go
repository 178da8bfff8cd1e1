package postgres

import (
	"context"
	"fmt"

	"vidstream/internal/models"
	"vidstream/internal/storage"
)

// InsertLike creates the toggle record for (kind, target, user). A losing
// concurrent insert surfaces as storage.ErrDuplicate via the unique index.
func (r *PostgresRepo) InsertLike(ctx context.Context, kind string, targetID, userID int64) error {
	const op = "storage.postgres.InsertLike"

	query := `
		INSERT INTO likes (kind, target_id, user_id)
		VALUES ($1, $2, $3);
	`

	_, err := r.pool.Exec(ctx, query, kind, targetID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteLike removes the toggle record and reports whether one existed.
func (r *PostgresRepo) DeleteLike(ctx context.Context, kind string, targetID, userID int64) (bool, error) {
	const op = "storage.postgres.DeleteLike"

	query := `
		DELETE FROM likes
		WHERE kind = $1 AND target_id = $2 AND user_id = $3;
	`

	tag, err := r.pool.Exec(ctx, query, kind, targetID, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) LikedVideos(ctx context.Context, userID int64) ([]models.Video, error) {
	const op = "storage.postgres.LikedVideos"

	query := `
		SELECT v.` + videoColumnsPrefixed + `
		FROM likes l
		JOIN videos v ON v.id = l.target_id
		WHERE l.user_id = $1 AND l.kind = 'video'
		ORDER BY l.created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanVideos(rows)
}

func (r *PostgresRepo) InsertSubscription(ctx context.Context, subscriberID, channelID int64) error {
	const op = "storage.postgres.InsertSubscription"

	query := `
		INSERT INTO subscriptions (subscriber_id, channel_id)
		VALUES ($1, $2);
	`

	_, err := r.pool.Exec(ctx, query, subscriberID, channelID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) DeleteSubscription(ctx context.Context, subscriberID, channelID int64) (bool, error) {
	const op = "storage.postgres.DeleteSubscription"

	query := `
		DELETE FROM subscriptions
		WHERE subscriber_id = $1 AND channel_id = $2;
	`

	tag, err := r.pool.Exec(ctx, query, subscriberID, channelID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) SubscriberCount(ctx context.Context, channelID int64) (int64, error) {
	const op = "storage.postgres.SubscriberCount"

	query := `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1;`

	var count int64
	if err := r.pool.QueryRow(ctx, query, channelID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// InsertView records that a viewer (or, for anonymous traffic, an address)
// has seen the video. Each keying has its own unique index, so a repeat view
// comes back as storage.ErrDuplicate.
func (r *PostgresRepo) InsertView(ctx context.Context, videoID int64, viewerID *int64, ipAddress *string) error {
	const op = "storage.postgres.InsertView"

	query := `
		INSERT INTO views (video_id, viewer_id, ip_address)
		VALUES ($1, $2, $3);
	`

	_, err := r.pool.Exec(ctx, query, videoID, viewerID, ipAddress)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) AddWatchHistory(ctx context.Context, userID, videoID int64) error {
	const op = "storage.postgres.AddWatchHistory"

	query := `
		INSERT INTO watch_history (user_id, video_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, video_id) DO NOTHING;
	`

	_, err := r.pool.Exec(ctx, query, userID, videoID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) WatchHistory(ctx context.Context, userID int64) ([]models.Video, error) {
	const op = "storage.postgres.WatchHistory"

	query := `
		SELECT v.` + videoColumnsPrefixed + `
		FROM watch_history h
		JOIN videos v ON v.id = h.video_id
		WHERE h.user_id = $1
		ORDER BY h.watched_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanVideos(rows)
}
