package notify

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidKind  = errors.New("invalid notification kind")
	ErrMissingOwner = errors.New("owner is required for this notification kind")
)

// LivePusher pushes a frame to a user's live connection, if any.
type LivePusher interface {
	SendTo(userID uint, v interface{}) realtime.DeliveryResult
}

// FollowerLister supplies the fan-out recipients for follower scoped kinds.
type FollowerLister interface {
	GetFollowerIDs(ctx context.Context, userID uint) ([]uint, error)
}

// OfflineQueue receives notifications whose recipient was not reached live.
type OfflineQueue interface {
	Enqueue(ctx context.Context, n models.Notification) error
}

// Action describes what happened. OwnerID is the owner of the post or comment
// acted on and is ignored for follower scoped kinds.
type Action struct {
	Kind      models.NotificationKind
	ActorID   uint
	OwnerID   uint
	PostID    string
	CommentID *uint
	Message   string
}

// Report is what a Notify call did: every stored notification and the live
// delivery outcome per recipient.
type Report struct {
	Notifications []models.Notification
	Deliveries    map[uint]realtime.DeliveryResult
}

// Delivered counts recipients reached over a live connection.
func (r *Report) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d == realtime.Delivered {
			n++
		}
	}
	return n
}

// Service persists notifications and fans them out to the recipients' live
// connections.
type Service struct {
	store     repositories.NotificationRepository
	followers FollowerLister
	live      LivePusher
	offline   OfflineQueue
	unread    UnreadCache
	log       *logrus.Entry
}

func NewService(store repositories.NotificationRepository, followers FollowerLister, live LivePusher) *Service {
	return &Service{
		store:     store,
		followers: followers,
		live:      live,
		log:       logger.Log.WithField("component", "notify"),
	}
}

// WithOfflineQueue enables push for recipients that were not online.
func (s *Service) WithOfflineQueue(q OfflineQueue) *Service {
	s.offline = q
	return s
}

func (s *Service) WithUnreadCache(c UnreadCache) *Service {
	s.unread = c
	return s
}

// Notify stores one unread notification per recipient and then pushes each
// one live. Storage errors abort the call; delivery problems never do. The
// recipient set is read once, at call time.
func (s *Service) Notify(ctx context.Context, a Action) (*Report, error) {
	wrapMsg := "unable to fan out notification"
	if !a.Kind.Valid() {
		return nil, errors.Wrapf(ErrInvalidKind, "%s: %q", wrapMsg, a.Kind)
	}

	recipients, err := s.recipients(ctx, a)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	report := &Report{
		Notifications: make([]models.Notification, 0, len(recipients)),
		Deliveries:    make(map[uint]realtime.DeliveryResult, len(recipients)),
	}
	for _, rid := range recipients {
		report.Notifications = append(report.Notifications, models.Notification{
			RecipientID: rid,
			ActorID:     a.ActorID,
			Kind:        a.Kind,
			PostID:      a.PostID,
			CommentID:   a.CommentID,
			Message:     a.Message,
		})
	}
	// all or nothing: a failed batch leaves no rows behind and pushes nothing
	if err := s.store.CreateNotifications(ctx, report.Notifications); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	for _, rid := range recipients {
		s.bumpUnread(ctx, rid)
	}

	for _, n := range report.Notifications {
		result := s.live.SendTo(n.RecipientID, realtime.NewNotificationFrame(n))
		report.Deliveries[n.RecipientID] = result
		if result != realtime.Delivered && s.offline != nil {
			if err := s.offline.Enqueue(ctx, n); err != nil {
				s.log.WithError(err).WithField("recipient_id", n.RecipientID).Warn("unable to queue offline push")
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"kind":       a.Kind,
		"actor_id":   a.ActorID,
		"recipients": len(recipients),
		"live":       report.Delivered(),
	}).Debug("notification fanned out")
	return report, nil
}

func (s *Service) recipients(ctx context.Context, a Action) ([]uint, error) {
	if a.Kind.FollowerScoped() {
		ids, err := s.followers.GetFollowerIDs(ctx, a.ActorID)
		if err != nil {
			return nil, err
		}
		out := ids[:0]
		for _, id := range ids {
			if id != a.ActorID {
				out = append(out, id)
			}
		}
		return out, nil
	}

	if a.OwnerID == 0 {
		return nil, ErrMissingOwner
	}
	// acting on your own content notifies nobody
	if a.OwnerID == a.ActorID {
		return nil, nil
	}
	return []uint{a.OwnerID}, nil
}

// List returns one page of the recipient's notifications, newest first. It
// never marks anything as read.
func (s *Service) List(ctx context.Context, recipientID uint, page, limit int, unreadOnly bool) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.store.GetByRecipientID(ctx, recipientID, page, limit, unreadOnly)
}

// MarkRead marks one notification read. It returns ErrNotFound (wrapped) when
// the notification does not exist or belongs to someone else. Repeating the
// call is harmless.
func (s *Service) MarkRead(ctx context.Context, recipientID, notificationID uint) (*models.Notification, error) {
	n, err := s.store.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != recipientID {
		return nil, errors.Wrap(repositories.ErrNotFound, "notification not found")
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.store.MarkAsRead(ctx, notificationID); err != nil {
		return nil, err
	}
	n.IsRead = true
	s.dropUnread(ctx, recipientID)
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	count, err := s.store.MarkAllAsRead(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	s.dropUnread(ctx, recipientID)
	return count, nil
}

// UnreadCount answers from the cache when it can and refills it otherwise.
func (s *Service) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	if s.unread != nil {
		if n, ok, err := s.unread.Get(ctx, recipientID); err != nil {
			s.log.WithError(err).Warn("unread cache read failed")
		} else if ok {
			return n, nil
		}
	}

	n, err := s.store.GetUnreadCount(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	if s.unread != nil {
		if err := s.unread.Set(ctx, recipientID, n); err != nil {
			s.log.WithError(err).Warn("unread cache write failed")
		}
	}
	return n, nil
}

func (s *Service) bumpUnread(ctx context.Context, recipientID uint) {
	if s.unread == nil {
		return
	}
	if err := s.unread.Incr(ctx, recipientID); err != nil {
		s.log.WithError(err).Warn("unread cache increment failed")
	}
}

func (s *Service) dropUnread(ctx context.Context, recipientID uint) {
	if s.unread == nil {
		return
	}
	if err := s.unread.Invalidate(ctx, recipientID); err != nil {
		s.log.WithError(err).Warn("unread cache invalidate failed")
	}
}
