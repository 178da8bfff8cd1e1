// Package engagement enforces at-most-once semantics for likes,
// subscriptions and view counting.
//
// The serving process may be one of many replicas, so no in-process lock can
// arbitrate duplicate requests. Correctness comes from the store's unique
// indexes instead: the losing side of a concurrent insert gets
// storage.ErrDuplicate, which is recovered locally as "already done".
package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "vidstream/internal/lib/logger"
	"vidstream/internal/models"
	"vidstream/internal/storage"
)

type LikeKind string

const (
	KindVideo   LikeKind = "video"
	KindComment LikeKind = "comment"
	KindTweet   LikeKind = "tweet"
)

var (
	ErrNotFound      = errors.New("target not found")
	ErrSelfSubscribe = errors.New("cannot subscribe to own channel")
	ErrUnknownKind   = errors.New("unknown like kind")
)

type Engagement struct {
	log   *slog.Logger
	store Storage
}

type Storage interface {
	VideoExists(ctx context.Context, id int64) (bool, error)
	CommentExists(ctx context.Context, id int64) (bool, error)
	TweetExists(ctx context.Context, id int64) (bool, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	VideoByID(ctx context.Context, id int64) (models.Video, error)

	InsertLike(ctx context.Context, kind string, targetID, userID int64) error
	DeleteLike(ctx context.Context, kind string, targetID, userID int64) (bool, error)
	LikedVideos(ctx context.Context, userID int64) ([]models.Video, error)

	InsertSubscription(ctx context.Context, subscriberID, channelID int64) error
	DeleteSubscription(ctx context.Context, subscriberID, channelID int64) (bool, error)
	SubscriberCount(ctx context.Context, channelID int64) (int64, error)

	InsertView(ctx context.Context, videoID int64, viewerID *int64, ipAddress *string) error
	IncrementViews(ctx context.Context, videoID int64) error
	AddWatchHistory(ctx context.Context, userID, videoID int64) error
	WatchHistory(ctx context.Context, userID int64) ([]models.Video, error)
}

func New(log *slog.Logger, store Storage) *Engagement {
	return &Engagement{log: log, store: store}
}

// ToggleLike flips the like state for (user, kind, target) and reports the
// resulting state. A concurrent duplicate toggle losing the insert race is
// treated as "someone already turned it on", not an error, so retried
// requests are safe.
func (e *Engagement) ToggleLike(ctx context.Context, userID int64, kind LikeKind, targetID int64) (bool, error) {
	const op = "engagement.ToggleLike"

	log := e.log.With(slog.String("op", op), slog.String("kind", string(kind)))

	exists, err := e.targetExists(ctx, kind, targetID)
	if err != nil {
		log.Error("failed to check target", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, ErrNotFound
	}

	deleted, err := e.store.DeleteLike(ctx, string(kind), targetID, userID)
	if err != nil {
		log.Error("failed to delete like", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if deleted {
		return false, nil
	}

	err = e.store.InsertLike(ctx, string(kind), targetID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// Lost the race against an identical request; state is on.
			return true, nil
		}

		log.Error("failed to insert like", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// ToggleSubscribe flips the subscription state for (subscriber, channel).
func (e *Engagement) ToggleSubscribe(ctx context.Context, subscriberID, channelID int64) (bool, error) {
	const op = "engagement.ToggleSubscribe"

	log := e.log.With(slog.String("op", op))

	if subscriberID == channelID {
		return false, ErrSelfSubscribe
	}

	exists, err := e.store.UserExists(ctx, channelID)
	if err != nil {
		log.Error("failed to check channel", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, ErrNotFound
	}

	deleted, err := e.store.DeleteSubscription(ctx, subscriberID, channelID)
	if err != nil {
		log.Error("failed to delete subscription", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if deleted {
		return false, nil
	}

	err = e.store.InsertSubscription(ctx, subscriberID, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return true, nil
		}

		log.Error("failed to insert subscription", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// RecordView counts a view at most once per (video, viewer) or, for
// anonymous traffic, per (video, address). Only a confirmed first-time
// insert increments the counter and appends watch history; a duplicate
// means this viewer was already counted and the call succeeds silently.
// Owners never count as viewers of their own videos.
func (e *Engagement) RecordView(ctx context.Context, videoID int64, viewerID *int64, ipAddress string) error {
	const op = "engagement.RecordView"

	log := e.log.With(slog.String("op", op), slog.Int64("video_id", videoID))

	video, err := e.store.VideoByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}

		log.Error("failed to load video", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if viewerID != nil && *viewerID == video.OwnerID {
		return nil
	}

	var ip *string
	if viewerID == nil {
		if ipAddress == "" {
			return nil
		}
		ip = &ipAddress
	}

	err = e.store.InsertView(ctx, videoID, viewerID, ip)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil
		}

		log.Error("failed to insert view", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := e.store.IncrementViews(ctx, videoID); err != nil {
		log.Error("failed to increment views", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if viewerID != nil {
		if err := e.store.AddWatchHistory(ctx, *viewerID, videoID); err != nil {
			log.Error("failed to append watch history", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// Watch loads a video and records the view. View tracking failures are
// logged but do not block playback.
func (e *Engagement) Watch(ctx context.Context, videoID int64, viewerID *int64, ipAddress string) (models.Video, error) {
	video, err := e.store.VideoByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}

		return models.Video{}, err
	}

	if err := e.RecordView(ctx, videoID, viewerID, ipAddress); err != nil {
		e.log.Warn("view tracking failed", sl.Err(err))
	}

	return video, nil
}

func (e *Engagement) SubscriberCount(ctx context.Context, channelID int64) (int64, error) {
	return e.store.SubscriberCount(ctx, channelID)
}

func (e *Engagement) LikedVideos(ctx context.Context, userID int64) ([]models.Video, error) {
	return e.store.LikedVideos(ctx, userID)
}

func (e *Engagement) WatchHistory(ctx context.Context, userID int64) ([]models.Video, error) {
	return e.store.WatchHistory(ctx, userID)
}

func (e *Engagement) targetExists(ctx context.Context, kind LikeKind, id int64) (bool, error) {
	switch kind {
	case KindVideo:
		return e.store.VideoExists(ctx, id)
	case KindComment:
		return e.store.CommentExists(ctx, id)
	case KindTweet:
		return e.store.TweetExists(ctx, id)
	default:
		return false, ErrUnknownKind
	}
}
