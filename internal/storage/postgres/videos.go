package postgres

import (
	"context"
	"errors"
	"fmt"

	"vidstream/internal/models"
	"vidstream/internal/storage"

	"github.com/jackc/pgx/v5"
)

const videoColumns = `id, owner_id, title, description, video_url, thumbnail_url,
		duration, views, published, created_at`

const videoColumnsPrefixed = `id, v.owner_id, v.title, v.description, v.video_url, v.thumbnail_url,
		v.duration, v.views, v.published, v.created_at`

func scanVideos(rows pgx.Rows) ([]models.Video, error) {
	var videos []models.Video

	for rows.Next() {
		var v models.Video

		err := rows.Scan(
			&v.ID,
			&v.OwnerID,
			&v.Title,
			&v.Description,
			&v.VideoURL,
			&v.ThumbnailURL,
			&v.Duration,
			&v.Views,
			&v.Published,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		videos = append(videos, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return videos, nil
}

func (r *PostgresRepo) VideoByID(ctx context.Context, id int64) (models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE id = $1;
	`

	var v models.Video
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.OwnerID,
		&v.Title,
		&v.Description,
		&v.VideoURL,
		&v.ThumbnailURL,
		&v.Duration,
		&v.Views,
		&v.Published,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, storage.ErrNotFound
		}

		return models.Video{}, err
	}

	return v, nil
}

// IncrementViews bumps the counter atomically on the database side.
func (r *PostgresRepo) IncrementViews(ctx context.Context, videoID int64) error {
	const op = "storage.postgres.IncrementViews"

	query := `UPDATE videos SET views = views + 1 WHERE id = $1;`

	_, err := r.pool.Exec(ctx, query, videoID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) VideoExists(ctx context.Context, id int64) (bool, error) {
	return r.rowExists(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1);`, id)
}

func (r *PostgresRepo) CommentExists(ctx context.Context, id int64) (bool, error) {
	return r.rowExists(ctx, `SELECT EXISTS (SELECT 1 FROM comments WHERE id = $1);`, id)
}

func (r *PostgresRepo) TweetExists(ctx context.Context, id int64) (bool, error) {
	return r.rowExists(ctx, `SELECT EXISTS (SELECT 1 FROM tweets WHERE id = $1);`, id)
}

func (r *PostgresRepo) rowExists(ctx context.Context, query string, id int64) (bool, error) {
	const op = "storage.postgres.rowExists"

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}
