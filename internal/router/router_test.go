package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "test-secret"

// memPosts keeps posts in memory in place of MongoDB.
type memPosts struct {
	mu    sync.Mutex
	posts map[string]*models.Post
}

func newMemPosts() *memPosts { return &memPosts{posts: map[string]*models.Post{}} }

func (m *memPosts) CreatePost(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.posts[p.ID.Hex()] = &cp
	return nil
}

func (m *memPosts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, errors.Wrap(repositories.ErrNotFound, "post not found")
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) filter(keep func(*models.Post) bool, skip, limit int64) []models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Post
	for _, p := range m.posts {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if skip >= int64(len(out)) {
		return nil
	}
	out = out[skip:]
	if limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out
}

func (m *memPosts) GetPostsByUserID(_ context.Context, userID uint, skip, limit int64) ([]models.Post, error) {
	return m.filter(func(p *models.Post) bool { return p.UserID == userID }, skip, limit), nil
}

func (m *memPosts) GetPostsByUserIDs(_ context.Context, userIDs []uint, skip, limit int64) ([]models.Post, error) {
	set := map[uint]bool{}
	for _, id := range userIDs {
		set[id] = true
	}
	return m.filter(func(p *models.Post) bool { return set[p.UserID] }, skip, limit), nil
}

func (m *memPosts) GetRecentPosts(_ context.Context, excludeUserID uint, skip, limit int64) ([]models.Post, error) {
	return m.filter(func(p *models.Post) bool { return p.UserID != excludeUserID }, skip, limit), nil
}

func (m *memPosts) UpdatePostContent(_ context.Context, id, content string) error {
	return m.update(id, func(p *models.Post) { p.Content = content })
}

func (m *memPosts) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return errors.Wrap(repositories.ErrNotFound, "post not found")
	}
	delete(m.posts, id)
	return nil
}

func (m *memPosts) update(id string, fn func(*models.Post)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return errors.Wrap(repositories.ErrNotFound, "post not found")
	}
	fn(p)
	return nil
}

func (m *memPosts) IncrementLikesCount(_ context.Context, id string) error {
	return m.update(id, func(p *models.Post) { p.LikesCount++ })
}

func (m *memPosts) DecrementLikesCount(_ context.Context, id string) error {
	return m.update(id, func(p *models.Post) {
		if p.LikesCount > 0 {
			p.LikesCount--
		}
	})
}

func (m *memPosts) IncrementCommentsCount(_ context.Context, id string) error {
	return m.update(id, func(p *models.Post) { p.CommentsCount++ })
}

func (m *memPosts) DecrementCommentsCount(_ context.Context, id string) error {
	return m.update(id, func(p *models.Post) {
		if p.CommentsCount > 0 {
			p.CommentsCount--
		}
	})
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

func (q *memQueue) recipients() []uint {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []uint
	for _, n := range q.sent {
		ids = append(ids, n.RecipientID)
	}
	return ids
}

// socket records frames pushed to a connected user.
type socket struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *socket) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *socket) Close() error { return nil }

func (s *socket) ofType(t *testing.T, typ string) []json.RawMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []json.RawMessage
	for _, raw := range s.frames {
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &head))
		if head.Type == typ {
			out = append(out, raw)
		}
	}
	return out
}

type testServer struct {
	e        *echo.Echo
	registry *realtime.Registry
	queue    *memQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := &testServer{e: echo.New(), registry: realtime.NewRegistry(), queue: &memQueue{}}
	s.e.Validator = validators.NewValidator()
	require.NoError(t, SetupRoutes(s.e, Dependencies{
		SQL:          db,
		Posts:        newMemPosts(),
		Registry:     s.registry,
		Offline:      s.queue,
		JWTSecret:    testSecret,
		WriteTimeout: time.Second,
		PongTimeout:  time.Second,
	}))
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

type account struct {
	id    uint
	token string
}

func (s *testServer) signup(t *testing.T, name string) account {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", echo.Map{
		"username": name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, code, "%v", body)
	user := body["user"].(map[string]interface{})
	return account{id: uint(user["id"].(float64)), token: body["token"].(string)}
}

func (s *testServer) follow(t *testing.T, who, whom account) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/follow", whom.id), who.token, nil)
	require.Equal(t, http.StatusOK, code, "%v", body)
}

func (s *testServer) createPost(t *testing.T, author account, content string) (string, map[string]interface{}) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/v1/posts", author.token, echo.Map{"content": content})
	require.Equal(t, http.StatusCreated, code, "%v", body)
	return body["data"].(map[string]interface{})["id"].(string), body
}

func (s *testServer) notifications(t *testing.T, who account) []interface{} {
	t.Helper()
	code, body := s.do(t, http.MethodGet, "/api/v1/notifications", who.token, nil)
	require.Equal(t, http.StatusOK, code, "%v", body)
	list, _ := body["data"].(map[string]interface{})["notifications"].([]interface{})
	return list
}

func TestHealthAndAuthGuard(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body)

	code, _ = s.do(t, http.MethodGet, "/api/v1/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/notifications", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignupAndSignIn(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", echo.Map{
		"username": "alice2", "email": "alice@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, body := s.do(t, http.MethodPost, "/api/v1/auth/signin", "", echo.Map{
		"email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["token"])

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/signin", "", echo.Map{
		"email": "alice@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFirebaseLoginUnavailableWithoutVerifier(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/firebase-login", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestNewPostFansOutToFollowers(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	carol := s.signup(t, "carol")
	s.follow(t, bob, alice)
	s.follow(t, carol, alice)

	bobSocket := &socket{}
	s.registry.Connect(bob.id, bobSocket)

	_, body := s.createPost(t, alice, "hello world")
	meta := body["meta"].(map[string]interface{})
	assert.EqualValues(t, 2, meta["notified"])
	assert.EqualValues(t, 1, meta["delivered"])

	// bob got it live, carol only through the offline queue
	frames := bobSocket.ofType(t, realtime.TypeNotification)
	require.Len(t, frames, 1)
	var f realtime.NotificationFrame
	require.NoError(t, json.Unmarshal(frames[0], &f))
	assert.Equal(t, models.KindNewPost, f.Notification.Kind)
	assert.Equal(t, alice.id, f.Notification.ActorID)
	assert.Equal(t, []uint{carol.id}, s.queue.recipients())

	// both are stored, the author gets nothing
	assert.Len(t, s.notifications(t, bob), 1)
	assert.Len(t, s.notifications(t, carol), 1)
	assert.Empty(t, s.notifications(t, alice))
}

func TestNotificationReadLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	s.follow(t, bob, alice)
	s.createPost(t, alice, "first")

	// listing twice keeps it unread
	list := s.notifications(t, bob)
	require.Len(t, list, 1)
	list = s.notifications(t, bob)
	n := list[0].(map[string]interface{})
	assert.Equal(t, false, n["is_read"])
	assert.Equal(t, "alice", n["actor"].(map[string]interface{})["username"])
	id := uint(n["id"].(float64))

	code, body := s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", bob.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["data"].(map[string]interface{})["count"])

	// someone else's notification looks missing
	code, _ = s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/notifications/%d/read", id), alice.token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	for i := 0; i < 2; i++ {
		code, body = s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/notifications/%d/read", id), bob.token, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["data"].(map[string]interface{})["is_read"])
	}

	code, body = s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", bob.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["data"].(map[string]interface{})["count"])

	code, _ = s.do(t, http.MethodPut, "/api/v1/notifications/999/read", bob.token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLikeNotifiesOwnerButNotSelf(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	postID, _ := s.createPost(t, alice, "like me")

	code, _ := s.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/likes", alice.token, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Empty(t, s.notifications(t, alice))

	aliceSocket := &socket{}
	s.registry.Connect(alice.id, aliceSocket)

	code, _ = s.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/likes", bob.token, nil)
	require.Equal(t, http.StatusCreated, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/likes", bob.token, nil)
	assert.Equal(t, http.StatusConflict, code)

	list := s.notifications(t, alice)
	require.Len(t, list, 1)
	assert.Equal(t, string(models.KindLikePost), list[0].(map[string]interface{})["kind"])
	assert.Len(t, aliceSocket.ofType(t, realtime.TypeNotification), 1)

	code, _ = s.do(t, http.MethodPost, "/api/v1/posts/"+primitive.NewObjectID().Hex()+"/likes", bob.token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCommentNotifiesPostOwner(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	postID, _ := s.createPost(t, alice, "discuss")

	code, body := s.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/comments", bob.token, echo.Map{"content": "nice"})
	require.Equal(t, http.StatusCreated, code, "%v", body)

	list := s.notifications(t, alice)
	require.Len(t, list, 1)
	assert.Equal(t, string(models.KindNewComment), list[0].(map[string]interface{})["kind"])
}

func TestChatSendPushesToRecipient(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")

	code, body := s.do(t, http.MethodPost, "/api/v1/chats/send", bob.token, echo.Map{"recipient_id": alice.id, "content": "hi"})
	require.Equal(t, http.StatusCreated, code, "%v", body)
	assert.Equal(t, "offline", body["meta"].(map[string]interface{})["delivery"])

	aliceSocket := &socket{}
	s.registry.Connect(alice.id, aliceSocket)

	code, body = s.do(t, http.MethodPost, "/api/v1/chats/send", bob.token, echo.Map{"recipient_id": alice.id, "content": "still there?"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "delivered", body["meta"].(map[string]interface{})["delivery"])

	frames := aliceSocket.ofType(t, realtime.TypeMessage)
	require.Len(t, frames, 1)
	var f realtime.MessageFrame
	require.NoError(t, json.Unmarshal(frames[0], &f))
	assert.Equal(t, bob.id, f.Message.SenderID)
	assert.Equal(t, "still there?", f.Message.Content)

	code, _ = s.do(t, http.MethodPost, "/api/v1/chats/send", bob.token, echo.Map{"recipient_id": bob.id, "content": "me"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOnlineUsers(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	s.registry.Connect(bob.id, &socket{})

	code, body := s.do(t, http.MethodGet, "/api/v1/online", alice.token, nil)
	require.Equal(t, http.StatusOK, code, "%v", body)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(bob.id)}, data["users"])
	assert.EqualValues(t, 1, data["count"])
}

func TestFeedAndExplore(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	carol := s.signup(t, "carol")
	s.follow(t, bob, alice)

	alicePost, _ := s.createPost(t, alice, "from alice")
	bobPost, _ := s.createPost(t, bob, "from bob")
	s.createPost(t, carol, "from carol")

	postIDs := func(body map[string]interface{}) []string {
		var ids []string
		for _, p := range body["data"].(map[string]interface{})["posts"].([]interface{}) {
			ids = append(ids, p.(map[string]interface{})["id"].(string))
		}
		return ids
	}

	code, body := s.do(t, http.MethodGet, "/api/v1/feed", bob.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.ElementsMatch(t, []string{alicePost, bobPost}, postIDs(body))

	code, body = s.do(t, http.MethodGet, "/api/v1/feed/explore", carol.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.ElementsMatch(t, []string{alicePost, bobPost}, postIDs(body))
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")

	code, _ := s.do(t, http.MethodGet, "/api/v1/profile", alice.token, nil)
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodPost, "/api/v1/auth/logout", alice.token, nil)
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, true, body["success"])

	code, _ = s.do(t, http.MethodGet, "/api/v1/profile", alice.token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/logout", alice.token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// a fresh sign in is unaffected
	code, body = s.do(t, http.MethodPost, "/api/v1/auth/signin", "", echo.Map{
		"email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/profile", body["token"].(string), nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCategoriesArePublic(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, code)
	list := body["data"].([]interface{})
	require.Len(t, list, len(models.Categories))
	first := list[0].(map[string]interface{})
	assert.EqualValues(t, 1, first["id"])
	assert.Equal(t, models.Categories[0].Name, first["name"])
}
