package repositories

import (
	"context"
	"sort"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// MessageRepository stores private messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.PrivateMessage) error
	GetConversation(ctx context.Context, userID, otherID uint, limit int) ([]models.PrivateMessage, error)
	GetConversations(ctx context.Context, userID uint) ([]models.Conversation, error)
	MarkConversationRead(ctx context.Context, recipientID, senderID uint) (int64, error)
}

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewPostgresMessageRepository(db *gorm.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) CreateMessage(ctx context.Context, msg *models.PrivateMessage) error {
	msg.IsRead = false
	return wrapGorm(r.db.WithContext(ctx).Create(msg).Error, "unable to save message")
}

// GetConversation returns the last limit messages exchanged between the two
// users in chronological order.
func (r *PostgresMessageRepository) GetConversation(ctx context.Context, userID, otherID uint, limit int) ([]models.PrivateMessage, error) {
	var msgs []models.PrivateMessage
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, otherID, otherID, userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, wrapGorm(err, "unable to load conversation")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetConversations groups every message userID took part in by the other
// participant. Conversations with the most recent activity come first.
func (r *PostgresMessageRepository) GetConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var msgs []models.PrivateMessage
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, wrapGorm(err, "unable to load conversations")
	}

	byPeer := make(map[uint]*models.Conversation)
	var order []uint
	for _, m := range msgs {
		peer := m.SenderID
		if peer == userID {
			peer = m.RecipientID
		}
		conv, ok := byPeer[peer]
		if !ok {
			conv = &models.Conversation{ParticipantID: peer}
			byPeer[peer] = conv
			order = append(order, peer)
		}
		conv.Messages = append(conv.Messages, m)
		if m.RecipientID == userID && !m.IsRead {
			conv.UnreadCount++
		}
	}

	result := make([]models.Conversation, 0, len(order))
	for _, peer := range order {
		result = append(result, *byPeer[peer])
	}
	sort.SliceStable(result, func(i, j int) bool {
		a := result[i].Messages[len(result[i].Messages)-1]
		b := result[j].Messages[len(result[j].Messages)-1]
		return a.ID > b.ID
	})
	return result, nil
}

// MarkConversationRead marks everything senderID sent to recipientID as read.
func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, recipientID, senderID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.PrivateMessage{}).
		Where("recipient_id = ? AND sender_id = ? AND is_read = ?", recipientID, senderID, false).
		Update("is_read", true)
	return res.RowsAffected, wrapGorm(res.Error, "unable to mark messages as read")
}
