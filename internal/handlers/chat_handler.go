package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// ChatHandler handles private messages sent over HTTP. Messages are stored
// and pushed to the recipient's socket when it is open.
type ChatHandler struct {
	messageRepository repositories.MessageRepository
	userRepository    repositories.UserRepository
	live              LivePusher
}

func NewChatHandler(messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, live LivePusher) *ChatHandler {
	return &ChatHandler{
		messageRepository: messageRepo,
		userRepository:    userRepo,
		live:              live,
	}
}

func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/chats/send", h.SendMessage)
	g.GET("/chats/conversation", h.GetConversation)
	g.GET("/chats", h.ListConversations)
	g.PUT("/chats/:user_id/read", h.MarkConversationRead)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.RecipientID == currentUserID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot message yourself")
	}
	ctx := c.Request().Context()

	if _, err := h.userRepository.GetUserByID(ctx, req.RecipientID); err != nil {
		return httpError(c, err, "Recipient not found")
	}

	msg := &models.PrivateMessage{
		SenderID:    currentUserID,
		RecipientID: req.RecipientID,
		Content:     strings.TrimSpace(req.Content),
	}
	if err := h.messageRepository.CreateMessage(ctx, msg); err != nil {
		return httpError(c, err, "")
	}

	result := h.live.SendTo(req.RecipientID, realtime.NewMessageFrame(*msg))

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    msg,
		"meta":    echo.Map{"delivery": result.String()},
	})
}

// GetConversation returns the messages exchanged with ?with=, oldest first
func (h *ChatHandler) GetConversation(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	otherID, err := strconv.ParseUint(c.QueryParam("with"), 10, 32)
	if err != nil || otherID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Query parameter 'with' must be a user ID")
	}
	_, limit := pagination(c, 50)

	msgs, err := h.messageRepository.GetConversation(c.Request().Context(), currentUserID, uint(otherID), limit)
	if err != nil {
		return httpError(c, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": msgs})
}

// ConversationSummary is a conversation plus the other participant
type ConversationSummary struct {
	models.Conversation
	Participant models.UserCompact `json:"participant"`
}

func (h *ChatHandler) ListConversations(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	convs, err := h.messageRepository.GetConversations(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "")
	}

	ids := make([]uint, len(convs))
	for i, conv := range convs {
		ids[i] = conv.ParticipantID
	}
	users, err := h.userRepository.GetUsersByIDs(ctx, ids)
	if err != nil {
		return httpError(c, err, "")
	}

	summaries := make([]ConversationSummary, len(convs))
	for i, conv := range convs {
		u := users[conv.ParticipantID]
		summaries[i] = ConversationSummary{Conversation: conv, Participant: u.ToCompact()}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": summaries})
}

// MarkConversationRead marks everything :user_id sent to the caller as read
func (h *ChatHandler) MarkConversationRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	otherID, err := parseIDParam(c, "user_id", "user")
	if err != nil {
		return err
	}

	count, err := h.messageRepository.MarkConversationRead(c.Request().Context(), currentUserID, otherID)
	if err != nil {
		return httpError(c, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"updated": count}})
}
