package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type recordingChannel struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recordingChannel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *recordingChannel) Close() error { return nil }

func (c *recordingChannel) notifications(t *testing.T) []models.Notification {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Notification
	for _, raw := range c.frames {
		var f realtime.NotificationFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Type == realtime.TypeNotification {
			out = append(out, f.Notification)
		}
	}
	return out
}

type staticFollowers map[uint][]uint

func (s staticFollowers) GetFollowerIDs(_ context.Context, userID uint) ([]uint, error) {
	return append([]uint(nil), s[userID]...), nil
}

type brokenFollowers struct{}

func (brokenFollowers) GetFollowerIDs(context.Context, uint) ([]uint, error) {
	return nil, errors.New("connection refused")
}

type failingStore struct {
	repositories.NotificationRepository
}

func (failingStore) CreateNotifications(context.Context, []models.Notification) error {
	return errors.New("disk full")
}

type memQueue struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (q *memQueue) Enqueue(_ context.Context, n models.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, n)
	return nil
}

type memUnread struct {
	mu     sync.Mutex
	counts map[uint]int64
}

func newMemUnread() *memUnread { return &memUnread{counts: map[uint]int64{}} }

func (m *memUnread) Get(_ context.Context, id uint) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.counts[id]
	return n, ok, nil
}

func (m *memUnread) Set(_ context.Context, id uint, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id] = n
	return nil
}

func (m *memUnread) Incr(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counts[id]; ok {
		m.counts[id]++
	}
	return nil
}

func (m *memUnread) Invalidate(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, id)
	return nil
}

func newStore(t *testing.T) repositories.NotificationRepository {
	t.Helper()
	return repositories.NewPostgresNotificationRepository(newStoreDB(t))
}

func newStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Notification{}))
	return db
}

// failNthInsert makes the nth row created through db fail.
func failNthInsert(t *testing.T, db *gorm.DB, nth int) {
	t.Helper()
	inserts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_nth_insert", func(tx *gorm.DB) {
		inserts++
		if inserts == nth {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))
}

func TestNotify_NewPostReachesOnlineFollowerAndStoresForAll(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	reg := realtime.NewRegistry()
	online := &recordingChannel{}
	reg.Connect(2, online)
	queue := &memQueue{}

	svc := NewService(store, staticFollowers{1: {2, 3}}, reg).WithOfflineQueue(queue)
	report, err := svc.Notify(ctx, Action{Kind: models.KindNewPost, ActorID: 1, PostID: "p1", Message: "alice posted"})
	require.NoError(t, err)

	require.Len(t, report.Notifications, 2)
	assert.Equal(t, realtime.Delivered, report.Deliveries[2])
	assert.Equal(t, realtime.Offline, report.Deliveries[3])
	assert.Equal(t, 1, report.Delivered())

	pushed := online.notifications(t)
	require.Len(t, pushed, 1)
	assert.Equal(t, uint(2), pushed[0].RecipientID)
	assert.Equal(t, models.KindNewPost, pushed[0].Kind)
	assert.False(t, pushed[0].IsRead)

	require.Len(t, queue.sent, 1)
	assert.Equal(t, uint(3), queue.sent[0].RecipientID)

	// the offline follower finds it later
	list, total, err := svc.List(ctx, 3, 1, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "p1", list[0].PostID)
	assert.False(t, list[0].IsRead)
}

func TestNotify_KFollowersGetKUnread(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	followers := []uint{10, 11, 12, 13, 14}
	svc := NewService(store, staticFollowers{1: followers}, realtime.NewRegistry())

	report, err := svc.Notify(ctx, Action{Kind: models.KindProfilePictureUpdate, ActorID: 1})
	require.NoError(t, err)
	assert.Len(t, report.Notifications, len(followers))

	for _, id := range followers {
		n, err := svc.UnreadCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}
}

func TestNotify_SelfActionNotifiesNobody(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	reg := realtime.NewRegistry()
	ch := &recordingChannel{}
	reg.Connect(4, ch)
	svc := NewService(store, staticFollowers{}, reg)

	for _, kind := range []models.NotificationKind{models.KindLikePost, models.KindLikeComment, models.KindNewComment} {
		report, err := svc.Notify(ctx, Action{Kind: kind, ActorID: 4, OwnerID: 4, PostID: "p"})
		require.NoError(t, err)
		assert.Empty(t, report.Notifications)
	}

	_, total, err := svc.List(ctx, 4, 1, 20, false)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, ch.notifications(t))
}

func TestNotify_LikeGoesToOwner(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), staticFollowers{}, realtime.NewRegistry())

	report, err := svc.Notify(ctx, Action{Kind: models.KindLikePost, ActorID: 1, OwnerID: 2, PostID: "p9"})
	require.NoError(t, err)
	require.Len(t, report.Notifications, 1)
	assert.Equal(t, uint(2), report.Notifications[0].RecipientID)
	assert.Equal(t, realtime.Offline, report.Deliveries[2])
}

func TestNotify_Errors(t *testing.T) {
	ctx := context.Background()
	reg := realtime.NewRegistry()
	ch := &recordingChannel{}
	reg.Connect(2, ch)

	_, err := NewService(newStore(t), staticFollowers{}, reg).Notify(ctx, Action{Kind: "poke", ActorID: 1})
	assert.True(t, errors.Is(err, ErrInvalidKind))

	_, err = NewService(newStore(t), staticFollowers{}, reg).Notify(ctx, Action{Kind: models.KindLikePost, ActorID: 1})
	assert.True(t, errors.Is(err, ErrMissingOwner))

	_, err = NewService(newStore(t), brokenFollowers{}, reg).Notify(ctx, Action{Kind: models.KindNewPost, ActorID: 1})
	assert.Error(t, err)

	_, err = NewService(failingStore{}, staticFollowers{1: {2}}, reg).Notify(ctx, Action{Kind: models.KindNewPost, ActorID: 1})
	assert.Error(t, err)

	// nothing was pushed for failed calls
	assert.Empty(t, ch.notifications(t))
	assert.True(t, reg.IsOnline(2))
}

func TestMarkRead_IdempotentAndOwned(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), staticFollowers{}, realtime.NewRegistry())
	report, err := svc.Notify(ctx, Action{Kind: models.KindNewComment, ActorID: 1, OwnerID: 2, PostID: "p"})
	require.NoError(t, err)
	id := report.Notifications[0].ID

	n, err := svc.MarkRead(ctx, 2, id)
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	n, err = svc.MarkRead(ctx, 2, id)
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	_, err = svc.MarkRead(ctx, 3, id)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))

	_, err = svc.MarkRead(ctx, 2, 999)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestListNeverMarksRead(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), staticFollowers{1: {2}}, realtime.NewRegistry())
	_, err := svc.Notify(ctx, Action{Kind: models.KindNewPost, ActorID: 1})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		list, _, err := svc.List(ctx, 2, 1, 20, true)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
}

func TestUnreadCache(t *testing.T) {
	ctx := context.Background()
	cache := newMemUnread()
	svc := NewService(newStore(t), staticFollowers{1: {2}}, realtime.NewRegistry()).WithUnreadCache(cache)

	_, err := svc.Notify(ctx, Action{Kind: models.KindNewPost, ActorID: 1})
	require.NoError(t, err)

	// miss fills the cache
	n, err := svc.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	cached, ok, _ := cache.Get(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, int64(1), cached)

	_, err = svc.Notify(ctx, Action{Kind: models.KindNewPost, ActorID: 1})
	require.NoError(t, err)
	cached, _, _ = cache.Get(ctx, 2)
	assert.Equal(t, int64(2), cached)

	marked, err := svc.MarkAllRead(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)
	_, ok, _ = cache.Get(ctx, 2)
	assert.False(t, ok)

	n, err = svc.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotify_StoreFailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	db := newStoreDB(t)
	failNthInsert(t, db, 2)
	store := repositories.NewPostgresNotificationRepository(db)

	reg := realtime.NewRegistry()
	online := &recordingChannel{}
	reg.Connect(2, online)
	queue := &memQueue{}
	unread := newMemUnread()
	require.NoError(t, unread.Set(ctx, 2, 0))

	svc := NewService(store, staticFollowers{1: {2, 3}}, reg).WithOfflineQueue(queue).WithUnreadCache(unread)
	report, err := svc.Notify(ctx, Action{Kind: models.KindNewPost, ActorID: 1, PostID: "p1", Message: "alice posted"})
	require.Error(t, err)
	assert.Nil(t, report)

	for _, rid := range []uint{2, 3} {
		rows, total, err := store.GetByRecipientID(ctx, rid, 1, 10, false)
		require.NoError(t, err)
		assert.Zero(t, total, "recipient %d", rid)
		assert.Empty(t, rows)
	}
	assert.Empty(t, online.notifications(t))
	assert.Empty(t, queue.sent)
	n, _, _ := unread.Get(ctx, 2)
	assert.Zero(t, n)
}
