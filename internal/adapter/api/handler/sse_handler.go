package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/notification-service/internal/adapter/api/middleware"
	"github.com/V4T54L/notification-service/internal/adapter/hub"
)

const sseKeepAlive = 15 * time.Second

// SSEHandler streams a recipient's notifications as server-sent events.
type SSEHandler struct {
	hub        *hub.Hub
	sendBuffer int
	logger     *slog.Logger
}

// NewSSEHandler creates a new SSEHandler.
func NewSSEHandler(h *hub.Hub, sendBuffer int, logger *slog.Logger) *SSEHandler {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &SSEHandler{hub: h, sendBuffer: sendBuffer, logger: logger.With("component", "sse")}
}

// ServeHTTP handles GET /api/notifications/stream
func (s *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	userID := middleware.UserID(r)
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		respondWithMessage(w, s.logger, http.StatusBadRequest, "User ID missing")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	conn := &sseConn{
		id:       uuid.NewString(),
		messages: make(chan hub.Frame, s.sendBuffer),
		done:     make(chan struct{}),
	}
	if err := s.hub.Join(conn, userID); err != nil {
		respondWithError(w, s.logger, err)
		return
	}
	defer s.hub.Leave(conn.id)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.done:
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case frame := <-conn.messages:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Event, frame.Data)
			flusher.Flush()
		}
	}
}

type sseConn struct {
	id        string
	messages  chan hub.Frame
	done      chan struct{}
	closeOnce sync.Once
}

func (c *sseConn) ID() string { return c.id }

func (c *sseConn) Send(frame hub.Frame) bool {
	select {
	case c.messages <- frame:
		return true
	default:
		// Slow client; the hub counts the drop.
		return false
	}
}

func (c *sseConn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
