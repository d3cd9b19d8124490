// Package ws is the live transport: one WebSocket connection per session,
// joined to a single room for its lifetime. It owns connection plumbing only;
// validation, persistence, and fan-out live behind the session.
package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
)

// Client pairs one WebSocket connection with its session and acts as the
// session's subscriber sink. Outbound messages go through a bounded send
// queue drained by writePump, so Deliver never blocks the broadcaster.
type Client struct {
	conn    *websocket.Conn
	send    chan domain.Message
	session *session.Session
	log     *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, sess *session.Session, bufferSize int, log *slog.Logger) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan domain.Message, bufferSize),
		session: sess,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Deliver enqueues msg for the write pump. A full queue means the peer
// stopped draining; the connection is torn down rather than stalling the
// broadcaster, and the reported error only affects this subscriber.
func (c *Client) Deliver(msg domain.Message) error {
	select {
	case c.send <- msg:
		return nil
	default:
		c.close()
		return fmt.Errorf("send queue full, dropping session %s", c.session.ID())
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("Read failed", "session", c.session.ID(), "error", err)
			}
			return
		}
		c.session.HandleRaw(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug("Write failed", "session", c.session.ID(), "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
