package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/notification-service/internal/usecase"
)

// ProjectHistory returns the audit history of one project.
type ProjectHistory interface {
	History(ctx context.Context, projectID string) ([]usecase.ProjectEvent, error)
}

// EventHandler serves the audit query routes.
type EventHandler struct {
	history ProjectHistory
	logger  *slog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(history ProjectHistory, logger *slog.Logger) *EventHandler {
	return &EventHandler{history: history, logger: logger}
}

// ProjectEvents handles GET /api/events/project/{projectId}
func (h *EventHandler) ProjectEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.history.History(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "data": events})
}
