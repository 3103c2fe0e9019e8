package notify

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TopicOffline carries notifications for recipients without a live socket.
const TopicOffline = "notifications.offline"

// BusQueue publishes offline notifications on a watermill bus.
type BusQueue struct {
	publisher message.Publisher
}

func NewBusQueue(publisher message.Publisher) *BusQueue {
	return &BusQueue{publisher: publisher}
}

func (q *BusQueue) Enqueue(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "unable to encode notification")
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	return errors.Wrap(q.publisher.Publish(TopicOffline, msg), "unable to publish offline notification")
}

// PushSender delivers a push message to device tokens and reports the tokens
// the provider no longer accepts.
type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (invalid []string, err error)
}

// TokenStore is the device token lookup the worker needs.
type TokenStore interface {
	TokensFor(ctx context.Context, userIDs []uint) (map[uint][]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

// PushWorker consumes TopicOffline and sends device pushes. Failures are
// logged and the message is acked anyway; push is best effort.
type PushWorker struct {
	subscriber message.Subscriber
	tokens     TokenStore
	sender     PushSender
	log        *logrus.Entry
}

func NewPushWorker(subscriber message.Subscriber, tokens TokenStore, sender PushSender) *PushWorker {
	return &PushWorker{
		subscriber: subscriber,
		tokens:     tokens,
		sender:     sender,
		log:        logger.Log.WithField("component", "push_worker"),
	}
}

// Start subscribes to TopicOffline and consumes it in the background until
// ctx is cancelled or the bus is closed.
func (w *PushWorker) Start(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, TopicOffline)
	if err != nil {
		return errors.Wrap(err, "unable to subscribe to offline notifications")
	}

	go func() {
		for msg := range messages {
			w.handle(ctx, msg)
			msg.Ack()
		}
		w.log.Info("push worker stopped")
	}()
	return nil
}

func (w *PushWorker) handle(ctx context.Context, msg *message.Message) {
	var n models.Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		w.log.WithError(err).WithField("message_uuid", msg.UUID).Error("dropping malformed offline notification")
		return
	}
	log := w.log.WithFields(logrus.Fields{"recipient_id": n.RecipientID, "notification_id": n.ID})

	byUser, err := w.tokens.TokensFor(ctx, []uint{n.RecipientID})
	if err != nil {
		log.WithError(err).Warn("unable to load device tokens")
		return
	}
	tokens := byUser[n.RecipientID]
	if len(tokens) == 0 {
		return
	}

	data := map[string]string{
		"kind":            string(n.Kind),
		"notification_id": strconv.FormatUint(uint64(n.ID), 10),
		"actor_id":        strconv.FormatUint(uint64(n.ActorID), 10),
	}
	if n.PostID != "" {
		data["post_id"] = n.PostID
	}

	invalid, err := w.sender.Send(ctx, tokens, pushTitle(n.Kind), n.Message, data)
	if err != nil {
		log.WithError(err).Warn("push send failed")
	}
	if len(invalid) > 0 {
		if err := w.tokens.DeleteTokens(ctx, invalid); err != nil {
			log.WithError(err).Warn("unable to prune device tokens")
		}
	}
}

// StartOfflinePush starts a PushWorker on sub and returns the queue feeding
// it. The queue exists only once the worker is subscribed, so nothing gets
// published to a topic nobody reads.
func StartOfflinePush(ctx context.Context, pub message.Publisher, sub message.Subscriber, tokens TokenStore, sender PushSender) (*BusQueue, error) {
	if err := NewPushWorker(sub, tokens, sender).Start(ctx); err != nil {
		return nil, err
	}
	return NewBusQueue(pub), nil
}

func pushTitle(kind models.NotificationKind) string {
	switch kind {
	case models.KindNewPost:
		return "New post"
	case models.KindLikePost:
		return "New like"
	case models.KindLikeComment:
		return "Your comment was liked"
	case models.KindNewComment:
		return "New comment"
	case models.KindProfilePictureUpdate:
		return "Profile updated"
	}
	return "Notification"
}
