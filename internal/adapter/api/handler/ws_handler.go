package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/V4T54L/notification-service/internal/adapter/api/middleware"
	"github.com/V4T54L/notification-service/internal/adapter/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

// inboundFrame is what a client sends over the socket, e.g. {"event":"join","data":"u1"}.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSHandler upgrades /ws requests and registers the socket with the hub.
type WSHandler struct {
	hub         *hub.Hub
	upgrader    websocket.Upgrader
	sendBuffer  int
	inboundRate rate.Limit
	logger      *slog.Logger
	limitWarn   rate.Sometimes
}

// NewWSHandler creates a WSHandler. inboundRate is in frames per second per socket.
func NewWSHandler(h *hub.Hub, allowedOrigins []string, sendBuffer int, inboundRate float64, logger *slog.Logger) *WSHandler {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	if inboundRate <= 0 {
		inboundRate = 5
	}
	return &WSHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sendBuffer:  sendBuffer,
		inboundRate: rate.Limit(inboundRate),
		logger:      logger.With("component", "ws"),
		limitWarn:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := newWSConn(ws, h.sendBuffer)
	go conn.writePump(h.logger)
	defer func() {
		h.hub.Leave(conn.ID())
		conn.Close()
	}()

	userID := middleware.UserID(r)
	if userID != "" {
		_ = h.hub.Join(conn, userID)
	}
	h.readPump(conn, userID)
}

// readPump serves join and leave frames. A socket opened with an identity can
// only join that identity's room.
func (h *WSHandler) readPump(conn *wsConn, identity string) {
	limiter := rate.NewLimiter(h.inboundRate, int(h.inboundRate)+1)

	conn.ws.SetReadLimit(maxInboundSize)
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed unexpectedly", "connection_id", conn.ID(), "error", err)
			}
			return
		}
		if !limiter.Allow() {
			h.limitWarn.Do(func() {
				h.logger.Warn("websocket inbound rate exceeded, dropping frame", "connection_id", conn.ID())
			})
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		switch frame.Event {
		case "join":
			var recipientID string
			if err := json.Unmarshal(frame.Data, &recipientID); err != nil {
				continue
			}
			if identity != "" && recipientID != identity {
				h.logger.Warn("join for another user rejected", "connection_id", conn.ID(), "user_id", identity, "requested", recipientID)
				continue
			}
			if err := h.hub.Join(conn, recipientID); err != nil {
				h.logger.Debug("join rejected", "connection_id", conn.ID(), "error", err)
			}
		case "leave":
			h.hub.Leave(conn.ID())
		}
	}
}

// wsConn adapts a websocket to hub.Conn. Frames are queued on send and
// written by a single writer goroutine.
type wsConn struct {
	id        string
	ws        *websocket.Conn
	send      chan hub.Frame
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan hub.Frame, buffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(frame hub.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *wsConn) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(frame); err != nil {
				logger.Debug("websocket write failed", "connection_id", c.id, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
