package handler

import (
	"context"
	"dailymatch/backend/internal/api/middleware"
	"dailymatch/backend/internal/events"
	"dailymatch/backend/internal/models"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusMessage is what the status stream sends. The first message is the
// current status; later ones mirror the member's events.
type StatusMessage struct {
	Type      string            `json:"type"`
	Status    models.MatchState `json:"status"`
	SessionID string            `json:"session_id,omitempty"`
}

// statusClient is one member's open status stream.
type statusClient struct {
	memberID string
	conn     *websocket.Conn
	sub      *events.Subscription
	cancel   context.CancelFunc
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket і транслює статус підбору
func (h *Handler) ServeWebSocket(c *gin.Context) {
	if h.Events == nil {
		h.abort(c, http.StatusNotFound, "not_found")
		return
	}
	memberID := c.GetString(middleware.MemberIDKey)

	// The stream outlives the request context once the connection is hijacked.
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := h.Events.Subscribe(ctx, memberID)
	if err != nil {
		cancel()
		h.fail(c, err)
		return
	}

	current, err := h.Matching.PollMatchStatus(ctx, memberID)
	if err != nil {
		cancel()
		_ = sub.Close()
		h.fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		_ = sub.Close()
		log.Warn().Err(err).Str("member_id", memberID).Msg("failed to upgrade connection")
		return
	}

	client := &statusClient{memberID: memberID, conn: conn, sub: sub, cancel: cancel}
	go client.writePump(StatusMessage{Type: "status", Status: current.Status, SessionID: current.SessionID})
	go client.readPump()
}

// readPump only services control frames; members never send data.
func (c *statusClient) readPump() {
	defer func() {
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("member_id", c.memberID).Msg("error reading message")
			}
			return
		}
	}
}

// writePump sends first, then every event until the subscription ends.
func (c *statusClient) writePump(first StatusMessage) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.sub.Close()
		c.conn.Close()
	}()

	if err := c.write(first); err != nil {
		return
	}

	for {
		select {
		case env, ok := <-c.sub.C:
			if !ok {
				// Підписку закрито, закриваємо з'єднання WS
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			msg := StatusMessage{
				Type:      string(env.Meta.Type),
				Status:    models.MatchState(env.Data.Status),
				SessionID: env.Data.SessionID,
			}
			if err := c.write(msg); err != nil {
				return
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *statusClient) write(msg StatusMessage) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}
