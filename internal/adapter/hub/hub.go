// Package hub keeps the live client connections of every recipient and
// pushes frames to them.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/notification-service/internal/adapter/metrics"
)

var ErrEmptyRecipient = errors.New("hub: recipient id is required")

// Frame is the unit pushed to a live connection.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Conn is one live client connection. Send must not block; it reports
// false when the frame could not be queued.
type Conn interface {
	ID() string
	Send(frame Frame) bool
	Close()
}

// Hub maps recipients to their delivery groups. It is safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	conns       map[string]Conn
	groups      map[string]map[string]struct{} // recipient -> connection ids
	memberships map[string]map[string]struct{} // connection id -> recipients

	logger   *slog.Logger
	metrics  *metrics.Metrics
	dropWarn rate.Sometimes
}

// New creates an empty Hub.
func New(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		conns:       make(map[string]Conn),
		groups:      make(map[string]map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger.With("component", "hub"),
		metrics:     m,
		dropWarn:    rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Join adds conn to the delivery group of recipientID, registering the
// connection on first use. Joining a group twice is a no-op.
func (h *Hub) Join(conn Conn, recipientID string) error {
	if recipientID == "" {
		return ErrEmptyRecipient
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := conn.ID()
	if _, ok := h.conns[id]; !ok {
		h.conns[id] = conn
		h.memberships[id] = make(map[string]struct{})
		h.metrics.SetActiveConnections(len(h.conns))
	}
	group, ok := h.groups[recipientID]
	if !ok {
		group = make(map[string]struct{})
		h.groups[recipientID] = group
	}
	group[id] = struct{}{}
	h.memberships[id][recipientID] = struct{}{}

	h.logger.Info("connection joined", "connection_id", id, "recipient_id", recipientID)
	return nil
}

// Leave removes the connection from every group it joined. Unknown ids are ignored.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	recipients, ok := h.memberships[connID]
	if !ok {
		return
	}
	for recipientID := range recipients {
		group := h.groups[recipientID]
		delete(group, connID)
		if len(group) == 0 {
			delete(h.groups, recipientID)
		}
	}
	delete(h.memberships, connID)
	delete(h.conns, connID)
	h.metrics.SetActiveConnections(len(h.conns))

	h.logger.Info("connection left", "connection_id", connID)
}

// Emit encodes payload once and pushes it as event to every connection in
// the recipient's group. An empty group is not an error.
func (h *Hub) Emit(ctx context.Context, recipientID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hub: failed to encode %s payload: %w", event, err)
	}
	h.EmitFrame(recipientID, Frame{Event: event, Data: data})
	return nil
}

// EmitFrame pushes an already encoded frame and returns how many connections accepted it.
func (h *Hub) EmitFrame(recipientID string, frame Frame) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	group := h.groups[recipientID]
	if len(group) == 0 {
		h.metrics.Emit("no_listeners", 1)
		h.logger.Debug("no live connection for recipient", "recipient_id", recipientID, "event", frame.Event)
		return 0
	}

	delivered, dropped := 0, 0
	for id := range group {
		if h.conns[id].Send(frame) {
			delivered++
			continue
		}
		dropped++
		h.dropWarn.Do(func() {
			h.logger.Warn("connection send buffer full, dropping frame", "connection_id", id, "recipient_id", recipientID)
		})
	}
	h.metrics.Emit("delivered", delivered)
	h.metrics.Emit("dropped", dropped)
	return delivered
}

// GroupSize returns the number of live connections for a recipient.
func (h *Hub) GroupSize(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[recipientID])
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close closes every connection and empties the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]Conn)
	h.groups = make(map[string]map[string]struct{})
	h.memberships = make(map[string]map[string]struct{})
	h.metrics.SetActiveConnections(0)
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	h.logger.Info("hub closed", "connections", len(conns))
}
