package handler

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/notification-service/internal/usecase"
)

// StatusReporter produces the operator view of the service.
type StatusReporter interface {
	Report() usecase.AdminReport
}

// AdminHandler serves health and consumer status.
type AdminHandler struct {
	reporter StatusReporter
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reporter StatusReporter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{reporter: reporter, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// ConsumerStatus handles GET /admin/consumer
func (h *AdminHandler) ConsumerStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.reporter.Report())
}
