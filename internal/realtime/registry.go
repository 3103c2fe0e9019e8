package realtime

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DeliveryResult is the outcome of pushing one frame to one user.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota
	Offline
	Dropped
)

func (r DeliveryResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case Offline:
		return "offline"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}

// Session identifies one registration. Disconnect only acts when the session
// is still the one on record for the user.
type Session struct {
	UserID uint
	Token  string
}

type entry struct {
	token string
	ch    Channel
}

// Registry maps each online user to its single live channel.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]entry
	// presenceMu orders user_list broadcasts so a stale list never follows a
	// newer one.
	presenceMu sync.Mutex
	log        *logrus.Entry
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[uint]entry),
		log:   logger.Log.WithField("component", "registry"),
	}
}

// Connect makes ch the active channel of userID. A previous channel is closed.
// Presence is broadcast afterwards.
func (r *Registry) Connect(userID uint, ch Channel) Session {
	s := Session{UserID: userID, Token: uuid.NewString()}

	r.mu.Lock()
	old, had := r.conns[userID]
	r.conns[userID] = entry{token: s.Token, ch: ch}
	r.mu.Unlock()

	if had && old.ch != ch {
		_ = old.ch.Close()
		r.log.WithField("user_id", userID).Info("replaced existing connection")
	}
	r.log.WithField("user_id", userID).Debug("connected")

	r.BroadcastPresence()
	return s
}

// Disconnect removes the session's mapping if it is still current and
// broadcasts presence either way. It reports whether a mapping was removed.
func (r *Registry) Disconnect(s Session) bool {
	removed := r.removeIfCurrent(s.UserID, s.Token)
	if removed {
		r.log.WithField("user_id", s.UserID).Debug("disconnected")
	}
	r.BroadcastPresence()
	return removed
}

func (r *Registry) removeIfCurrent(userID uint, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[userID]; ok && e.token == token {
		delete(r.conns, userID)
		return true
	}
	return false
}

// SendTo pushes v to userID's channel. A write failure prunes the entry and
// closes the channel.
func (r *Registry) SendTo(userID uint, v interface{}) DeliveryResult {
	frame, err := json.Marshal(v)
	if err != nil {
		r.log.WithError(err).Error("unable to encode frame")
		return Dropped
	}
	return r.sendFrame(userID, frame)
}

func (r *Registry) sendFrame(userID uint, frame []byte) DeliveryResult {
	r.mu.RLock()
	e, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return Offline
	}
	return r.deliver(userID, e, frame)
}

// deliver writes frame to e. When the write fails because e was replaced by a
// reconnect in the meantime, the frame goes to the newer channel instead.
func (r *Registry) deliver(userID uint, e entry, frame []byte) DeliveryResult {
	err := e.ch.Send(frame)
	if err == nil {
		return Delivered
	}
	if r.removeIfCurrent(userID, e.token) {
		r.log.WithError(err).WithField("user_id", userID).Warn("dropping dead connection")
		_ = e.ch.Close()
		return Dropped
	}

	r.mu.RLock()
	current, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return Offline
	}
	if err := current.ch.Send(frame); err != nil {
		r.log.WithError(err).WithField("user_id", userID).Warn("dropping dead connection")
		if r.removeIfCurrent(userID, current.token) {
			_ = current.ch.Close()
		}
		return Dropped
	}
	return Delivered
}

// Broadcast pushes v to every registered channel. Failing channels are
// removed; the rest still receive the frame.
func (r *Registry) Broadcast(v interface{}) map[uint]DeliveryResult {
	frame, err := json.Marshal(v)
	if err != nil {
		r.log.WithError(err).Error("unable to encode frame")
		return nil
	}

	r.mu.RLock()
	snapshot := make(map[uint]entry, len(r.conns))
	for id, e := range r.conns {
		snapshot[id] = e
	}
	r.mu.RUnlock()

	results := make(map[uint]DeliveryResult, len(snapshot))
	for id, e := range snapshot {
		results[id] = r.deliver(id, e, frame)
	}
	return results
}

// BroadcastPresence sends the sorted list of online users to everyone.
func (r *Registry) BroadcastPresence() {
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()
	r.Broadcast(UserListFrame{Type: TypeUserList, Users: r.OnlineUsers()})
}

func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// OnlineUsers returns the ids of all connected users in ascending order.
func (r *Registry) OnlineUsers() []uint {
	r.mu.RLock()
	ids := make([]uint, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
