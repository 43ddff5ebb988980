package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/notification-service/internal/adapter/api/handler"
	"github.com/V4T54L/notification-service/internal/adapter/api/middleware"
	"github.com/V4T54L/notification-service/internal/adapter/hub"
	"github.com/V4T54L/notification-service/internal/pkg/config"
	"github.com/V4T54L/notification-service/internal/usecase"
)

// NewRouter creates and configures the HTTP router of the notification service.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	notifications handler.NotificationService,
	history handler.ProjectHistory,
	admin *usecase.AdminUseCase,
	h *hub.Hub,
	gatherer prometheus.Gatherer,
) http.Handler {
	notificationHandler := handler.NewNotificationHandler(notifications, logger)
	eventHandler := handler.NewEventHandler(history, logger)
	adminHandler := handler.NewAdminHandler(admin, logger)
	wsHandler := handler.NewWSHandler(h, cfg.CORSAllowedOrigins, cfg.WSSendBuffer, cfg.WSInboundRate, logger)
	sseHandler := handler.NewSSEHandler(h, cfg.WSSendBuffer, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.UserIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", adminHandler.HealthCheck)
	r.Get("/admin/consumer", adminHandler.ConsumerStatus)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWTSecret, logger))

		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/unread-count", notificationHandler.UnreadCount)
			r.Get("/stream", sseHandler.ServeHTTP)
			r.Put("/read-all", notificationHandler.MarkAllRead)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Put("/{id}/unread", notificationHandler.MarkUnread)
			r.Delete("/{id}", notificationHandler.Delete)
		})
		r.Get("/api/events/project/{projectId}", eventHandler.ProjectEvents)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	return r
}
