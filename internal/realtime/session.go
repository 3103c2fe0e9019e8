package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/anonto42/nano-social/backend/validators"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	DefaultWriteWait = 10 * time.Second
	DefaultPongWait  = 60 * time.Second
)

// Handler upgrades authenticated requests to WebSocket sessions registered in
// the Registry.
type Handler struct {
	registry  *Registry
	upgrader  websocket.Upgrader
	writeWait time.Duration
	pongWait  time.Duration
	log       *logrus.Entry
}

// NewHandler builds the socket handler. Non-positive timeouts are replaced by
// DefaultWriteWait and DefaultPongWait.
func NewHandler(registry *Registry, writeWait, pongWait time.Duration) *Handler {
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	if pongWait <= 0 {
		pongWait = DefaultPongWait
	}
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		writeWait: writeWait,
		pongWait:  pongWait,
		log:       logger.Log.WithField("component", "ws"),
	}
}

// Serve handles GET /ws. It blocks for the lifetime of the connection.
func (h *Handler) Serve(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written an error response
		h.log.WithError(err).WithField("user_id", userID).Warn("websocket upgrade failed")
		return nil
	}

	ch := NewWSChannel(conn, h.writeWait)
	session := h.registry.Connect(userID, ch)
	log := h.log.WithField("user_id", userID)
	log.Info("websocket connected")

	done := make(chan struct{})
	defer func() {
		close(done)
		h.registry.Disconnect(session)
		_ = ch.Close()
		log.Info("websocket disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	go h.keepAlive(ch, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("websocket read error")
			}
			return nil
		}
		h.dispatch(session, ch, data)
	}
}

// keepAlive pings the peer until done is closed. Ping period must be less
// than pongWait.
func (h *Handler) keepAlive(ch *WSChannel, done <-chan struct{}) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ch.Ping(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) dispatch(s Session, ch Channel, data []byte) {
	var in InboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		h.reply(ch, newErrorFrame("malformed frame"))
		return
	}

	switch in.Type {
	case TypeChat:
		content := strings.TrimSpace(in.Content)
		if in.RecipientID == 0 || content == "" {
			h.reply(ch, newErrorFrame("chat needs recipient_id and content"))
			return
		}
		if !validators.IsTextClean(content) {
			h.reply(ch, newErrorFrame("message contains inappropriate language"))
			return
		}
		result := h.registry.SendTo(in.RecipientID, ChatFrame{Type: TypeChat, From: s.UserID, Content: content})
		h.reply(ch, SentFrame{Type: TypeSent, To: in.RecipientID, Content: content, Delivered: result == Delivered})

	case TypeTyping:
		if in.RecipientID == 0 || (in.Status != "start" && in.Status != "stop") {
			h.reply(ch, newErrorFrame("typing needs recipient_id and status start|stop"))
			return
		}
		h.registry.SendTo(in.RecipientID, TypingFrame{Type: TypeTyping, From: s.UserID, Status: in.Status})

	default:
		h.reply(ch, newErrorFrame("unknown frame type"))
	}
}

// reply writes straight to the session's own channel, so acknowledgements
// never land on a newer connection of the same user.
func (h *Handler) reply(ch Channel, v interface{}) {
	frame, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("unable to encode reply")
		return
	}
	if err := ch.Send(frame); err != nil {
		h.log.WithError(err).Debug("unable to reply")
	}
}
