package engagement

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"vidstream/internal/models"
	"vidstream/internal/storage"

	"github.com/stretchr/testify/require"
)

type likeKey struct {
	kind     string
	targetID int64
	userID   int64
}

type subKey struct {
	subscriberID int64
	channelID    int64
}

type viewKey struct {
	videoID int64
	who     string
}

// fakeStore enforces the same uniqueness guarantees the database does, so
// the duplicate-recovery paths can be exercised without a live store.
type fakeStore struct {
	mu sync.Mutex

	users    map[int64]bool
	videos   map[int64]*models.Video
	comments map[int64]bool
	tweets   map[int64]bool

	likes   map[likeKey]bool
	subs    map[subKey]bool
	views   map[viewKey]bool
	history map[int64][]int64

	// When set, InsertLike reports a duplicate without recording anything,
	// simulating losing an insert race to another replica.
	insertLikeLosesRace bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]bool),
		videos:   make(map[int64]*models.Video),
		comments: make(map[int64]bool),
		tweets:   make(map[int64]bool),
		likes:    make(map[likeKey]bool),
		subs:     make(map[subKey]bool),
		views:    make(map[viewKey]bool),
		history:  make(map[int64][]int64),
	}
}

func (s *fakeStore) VideoExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.videos[id]
	return ok, nil
}

func (s *fakeStore) CommentExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments[id], nil
}

func (s *fakeStore) TweetExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tweets[id], nil
}

func (s *fakeStore) UserExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *fakeStore) VideoByID(_ context.Context, id int64) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, storage.ErrNotFound
	}

	return *v, nil
}

func (s *fakeStore) InsertLike(_ context.Context, kind string, targetID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertLikeLosesRace {
		return storage.ErrDuplicate
	}

	k := likeKey{kind, targetID, userID}
	if s.likes[k] {
		return storage.ErrDuplicate
	}

	s.likes[k] = true

	return nil
}

func (s *fakeStore) DeleteLike(_ context.Context, kind string, targetID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := likeKey{kind, targetID, userID}
	if !s.likes[k] {
		return false, nil
	}

	delete(s.likes, k)

	return true, nil
}

func (s *fakeStore) LikedVideos(_ context.Context, userID int64) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Video
	for k := range s.likes {
		if k.kind == string(KindVideo) && k.userID == userID {
			if v, ok := s.videos[k.targetID]; ok {
				out = append(out, *v)
			}
		}
	}

	return out, nil
}

func (s *fakeStore) InsertSubscription(_ context.Context, subscriberID, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := subKey{subscriberID, channelID}
	if s.subs[k] {
		return storage.ErrDuplicate
	}

	s.subs[k] = true

	return nil
}

func (s *fakeStore) DeleteSubscription(_ context.Context, subscriberID, channelID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := subKey{subscriberID, channelID}
	if !s.subs[k] {
		return false, nil
	}

	delete(s.subs, k)

	return true, nil
}

func (s *fakeStore) SubscriberCount(_ context.Context, channelID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k := range s.subs {
		if k.channelID == channelID {
			count++
		}
	}

	return count, nil
}

func (s *fakeStore) InsertView(_ context.Context, videoID int64, viewerID *int64, ipAddress *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var who string
	switch {
	case viewerID != nil:
		who = "u:" + strconv.FormatInt(*viewerID, 10)
	case ipAddress != nil:
		who = "ip:" + *ipAddress
	}

	k := viewKey{videoID, who}
	if s.views[k] {
		return storage.ErrDuplicate
	}

	s.views[k] = true

	return nil
}

func (s *fakeStore) IncrementViews(_ context.Context, videoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.videos[videoID].Views++

	return nil
}

func (s *fakeStore) AddWatchHistory(_ context.Context, userID, videoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.history[userID] {
		if id == videoID {
			return nil
		}
	}

	s.history[userID] = append(s.history[userID], videoID)

	return nil
}

func (s *fakeStore) WatchHistory(_ context.Context, userID int64) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Video
	for _, id := range s.history[userID] {
		if v, ok := s.videos[id]; ok {
			out = append(out, *v)
		}
	}

	return out, nil
}

func newTestEngagement(store Storage) *Engagement {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, store)
}

func seedVideo(s *fakeStore, id, ownerID int64) {
	s.users[ownerID] = true
	s.videos[id] = &models.Video{ID: id, OwnerID: ownerID, Title: "clip"}
}

func TestToggleLike_OnOff(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	e := newTestEngagement(store)
	ctx := context.Background()

	liked, err := e.ToggleLike(ctx, 2, KindVideo, 10)
	require.NoError(t, err)
	require.True(t, liked)

	liked, err = e.ToggleLike(ctx, 2, KindVideo, 10)
	require.NoError(t, err)
	require.False(t, liked)

	liked, err = e.ToggleLike(ctx, 2, KindVideo, 10)
	require.NoError(t, err)
	require.True(t, liked)
}

func TestToggleLike_MissingTarget(t *testing.T) {
	store := newFakeStore()
	e := newTestEngagement(store)

	_, err := e.ToggleLike(context.Background(), 2, KindVideo, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestToggleLike_UnknownKind(t *testing.T) {
	store := newFakeStore()
	e := newTestEngagement(store)

	_, err := e.ToggleLike(context.Background(), 2, LikeKind("playlist"), 1)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestToggleLike_LostInsertRaceReportsOn(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	store.insertLikeLosesRace = true
	e := newTestEngagement(store)

	liked, err := e.ToggleLike(context.Background(), 2, KindVideo, 10)
	require.NoError(t, err)
	require.True(t, liked, "losing the insert race means the like is on")
}

func TestToggleLike_KindsAreIndependent(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	store.comments[10] = true
	e := newTestEngagement(store)
	ctx := context.Background()

	liked, err := e.ToggleLike(ctx, 2, KindVideo, 10)
	require.NoError(t, err)
	require.True(t, liked)

	// Same target ID under a different kind is a separate like.
	liked, err = e.ToggleLike(ctx, 2, KindComment, 10)
	require.NoError(t, err)
	require.True(t, liked)
}

func TestToggleSubscribe(t *testing.T) {
	store := newFakeStore()
	store.users[1] = true
	store.users[2] = true
	e := newTestEngagement(store)
	ctx := context.Background()

	subscribed, err := e.ToggleSubscribe(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, subscribed)

	count, err := e.SubscriberCount(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	subscribed, err = e.ToggleSubscribe(ctx, 1, 2)
	require.NoError(t, err)
	require.False(t, subscribed)

	count, err = e.SubscriberCount(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	_, err = e.ToggleSubscribe(ctx, 1, 1)
	require.ErrorIs(t, err, ErrSelfSubscribe)

	_, err = e.ToggleSubscribe(ctx, 1, 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordView_CountsOncePerViewer(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	e := newTestEngagement(store)
	ctx := context.Background()

	viewer := int64(2)

	require.NoError(t, e.RecordView(ctx, 10, &viewer, ""))
	require.NoError(t, e.RecordView(ctx, 10, &viewer, ""))

	v, err := store.VideoByID(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Views)
}

func TestRecordView_OwnerNeverCounted(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	e := newTestEngagement(store)
	ctx := context.Background()

	owner := int64(1)

	require.NoError(t, e.RecordView(ctx, 10, &owner, ""))

	v, err := store.VideoByID(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(0), v.Views)
	require.Empty(t, store.history[owner], "own videos never enter watch history")
}

func TestRecordView_AnonymousKeyedByAddress(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	e := newTestEngagement(store)
	ctx := context.Background()

	require.NoError(t, e.RecordView(ctx, 10, nil, "203.0.113.7"))
	require.NoError(t, e.RecordView(ctx, 10, nil, "203.0.113.7"))
	require.NoError(t, e.RecordView(ctx, 10, nil, "203.0.113.8"))

	// No address at all means the view simply is not counted.
	require.NoError(t, e.RecordView(ctx, 10, nil, ""))

	v, err := store.VideoByID(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), v.Views)
}

func TestRecordView_WatchHistoryOnFirstViewOnly(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	e := newTestEngagement(store)
	ctx := context.Background()

	viewer := int64(2)

	require.NoError(t, e.RecordView(ctx, 10, &viewer, ""))
	require.NoError(t, e.RecordView(ctx, 10, &viewer, ""))

	history, err := e.WatchHistory(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, history, 1)

	// Anonymous views leave no history.
	require.NoError(t, e.RecordView(ctx, 10, nil, "203.0.113.7"))
	history, err = e.WatchHistory(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestRecordView_MissingVideo(t *testing.T) {
	store := newFakeStore()
	e := newTestEngagement(store)

	viewer := int64(2)

	err := e.RecordView(context.Background(), 42, &viewer, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWatch_ReturnsVideoDespiteTrackingState(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	e := newTestEngagement(store)
	ctx := context.Background()

	viewer := int64(2)

	v, err := e.Watch(ctx, 10, &viewer, "")
	require.NoError(t, err)
	require.Equal(t, int64(10), v.ID)

	// A repeat watch is a duplicate view, still a successful watch.
	_, err = e.Watch(ctx, 10, &viewer, "")
	require.NoError(t, err)

	_, err = e.Watch(ctx, 42, &viewer, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestToggleLike_ConcurrentTogglesConverge(t *testing.T) {
	store := newFakeStore()
	seedVideo(store, 10, 1)
	e := newTestEngagement(store)
	ctx := context.Background()

	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ToggleLike(ctx, 2, KindVideo, 10)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// Whatever the interleaving, there is at most one like row.
	store.mu.Lock()
	defer store.mu.Unlock()

	count := 0
	for k := range store.likes {
		if k == (likeKey{string(KindVideo), 10, 2}) {
			count++
		}
	}
	require.LessOrEqual(t, count, 1)
}
