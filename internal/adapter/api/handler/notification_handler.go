package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/notification-service/internal/adapter/api/middleware"
	"github.com/V4T54L/notification-service/internal/domain"
)

// NotificationService is the command and query surface behind the notification routes.
type NotificationService interface {
	List(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	SetReadState(ctx context.Context, id, actorID string, isRead bool) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, actorID string) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// NotificationHandler serves /api/notifications.
type NotificationHandler struct {
	svc    NotificationService
	logger *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// List handles GET /api/notifications?userId=&limit=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 0
	}

	items, err := h.svc.List(r.Context(), userID, limit)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(items),
		"data":    items,
	})
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}

	n, err := h.svc.CountUnread(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "count": n})
}

// MarkRead handles PUT /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.setReadState(w, r, true)
}

// MarkUnread handles PUT /api/notifications/{id}/unread
func (h *NotificationHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	h.setReadState(w, r, false)
}

func (h *NotificationHandler) setReadState(w http.ResponseWriter, r *http.Request, isRead bool) {
	actorID, err := actorFromHeaderOrBody(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	n, err := h.svc.SetReadState(r.Context(), chi.URLParam(r, "id"), actorID, isRead)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "data": n})
}

// MarkAllRead handles PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := actorFromHeaderOrBody(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	if _, err := h.svc.MarkAllRead(r.Context(), userID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{
		"success": true,
		"message": "All notifications marked as read",
	})
}

// Delete handles DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.UserID(r)
	if actorID == "" {
		actorID = r.URL.Query().Get("userId")
	}
	if actorID == "" {
		var err error
		if actorID, err = bodyUserID(r); err != nil {
			respondWithError(w, h.logger, err)
			return
		}
	}

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), actorID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "data": struct{}{}})
}

func actorFromHeaderOrBody(r *http.Request) (string, error) {
	if id := middleware.UserID(r); id != "" {
		return id, nil
	}
	return bodyUserID(r)
}
