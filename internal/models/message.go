package models

import "time"

// PrivateMessage is a persisted direct message between two users.
type PrivateMessage struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	SenderID    uint      `json:"sender_id" gorm:"index"`
	RecipientID uint      `json:"recipient_id" gorm:"index"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"is_read" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" validate:"required"`
	Content     string `json:"content" validate:"required,min=1,max=2000,clean"`
}

// Conversation groups the messages exchanged with one other participant,
// oldest first.
type Conversation struct {
	ParticipantID uint             `json:"participant_id"`
	Messages      []PrivateMessage `json:"messages"`
	UnreadCount   int              `json:"unread_count"`
}
