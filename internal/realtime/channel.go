package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Channel is a bidirectional message pipe to one client. Implementations must
// be safe for concurrent Send calls and deliver frames in call order.
type Channel interface {
	Send(frame []byte) error
	Close() error
}

var errChannelClosed = errors.New("channel closed")

// WSChannel is a Channel over a gorilla websocket connection. gorilla allows
// one concurrent writer, so every write goes through mu.
type WSChannel struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
}

func NewWSChannel(conn *websocket.Conn, writeWait time.Duration) *WSChannel {
	return &WSChannel{conn: conn, writeWait: writeWait}
}

func (c *WSChannel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return errors.Wrap(err, "unable to set write deadline")
	}
	return errors.Wrap(c.conn.WriteMessage(websocket.TextMessage, frame), "unable to write frame")
}

// Ping writes a ping control frame.
func (c *WSChannel) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// Close sends a close frame (best effort) and closes the connection. Calling
// it more than once is harmless.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeWait))
	return c.conn.Close()
}
