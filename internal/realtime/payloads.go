package realtime

import "github.com/anonto42/nano-social/backend/internal/models"

// Frame types pushed to clients.
const (
	TypeUserList     = "user_list"
	TypeChat         = "chat"
	TypeSent         = "sent"
	TypeTyping       = "typing"
	TypeNotification = "notification"
	TypeMessage      = "message"
	TypeError        = "error"
)

type UserListFrame struct {
	Type  string `json:"type"`
	Users []uint `json:"users"`
}

type ChatFrame struct {
	Type    string `json:"type"`
	From    uint   `json:"from"`
	Content string `json:"content"`
}

// SentFrame acknowledges a chat to its sender. Delivered is false when the
// recipient had no live connection; socket chat is not stored.
type SentFrame struct {
	Type      string `json:"type"`
	To        uint   `json:"to"`
	Content   string `json:"content"`
	Delivered bool   `json:"delivered"`
}

type TypingFrame struct {
	Type   string `json:"type"`
	From   uint   `json:"from"`
	Status string `json:"status"`
}

type NotificationFrame struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
}

type MessageFrame struct {
	Type    string                `json:"type"`
	Message models.PrivateMessage `json:"message"`
}

type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// InboundFrame is anything a client sends over the socket.
type InboundFrame struct {
	Type        string `json:"type"`
	RecipientID uint   `json:"recipient_id"`
	Content     string `json:"content"`
	Status      string `json:"status"`
}

func NewNotificationFrame(n models.Notification) NotificationFrame {
	return NotificationFrame{Type: TypeNotification, Notification: n}
}

func NewMessageFrame(m models.PrivateMessage) MessageFrame {
	return MessageFrame{Type: TypeMessage, Message: m}
}

func newErrorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Error: msg}
}
