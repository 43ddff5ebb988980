package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/notification-service/internal/adapter/api"
	"github.com/V4T54L/notification-service/internal/adapter/broker/kafka"
	"github.com/V4T54L/notification-service/internal/adapter/channel"
	"github.com/V4T54L/notification-service/internal/adapter/hub"
	"github.com/V4T54L/notification-service/internal/adapter/metrics"
	"github.com/V4T54L/notification-service/internal/adapter/notifier"
	"github.com/V4T54L/notification-service/internal/adapter/pii"
	"github.com/V4T54L/notification-service/internal/adapter/repository/memory"
	mongorepo "github.com/V4T54L/notification-service/internal/adapter/repository/mongo"
	"github.com/V4T54L/notification-service/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/notification-service/internal/adapter/repository/redis"
	"github.com/V4T54L/notification-service/internal/domain"
	"github.com/V4T54L/notification-service/internal/pkg/config"
	"github.com/V4T54L/notification-service/internal/pkg/logger"
	"github.com/V4T54L/notification-service/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

const relayRetryDelay = 5 * time.Second

// stores bundles the persistence adapters selected by STORE_DRIVER.
type stores struct {
	audit         domain.AuditRepository
	notifications domain.NotificationRepository
	// nativeTTL is true when the store expires audit events by itself.
	nativeTTL bool
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.New(prometheus.DefaultRegisterer)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()
	logger.Info("stores ready", "driver", cfg.StoreDriver)

	// --- Fan-out ---
	h := hub.New(logger, m)
	var emitter domain.Emitter = h
	var dedup domain.Deduplicator

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, relay will keep retrying", "error", err)
		}

		relay := redisrepo.NewRelay(redisClient, cfg.RedisFanoutChannel, h, logger)
		emitter = relay
		go runRelay(ctx, relay, logger)

		if cfg.DedupEnabled() {
			dedup = redisrepo.NewDeduplicator(redisClient, cfg.DedupTTL)
			logger.Info("redelivery dedup enabled", "ttl", cfg.DedupTTL)
		}
	}

	// --- Pipeline ---
	factory := channel.NewFactory(logger, notifier.NewLogMailer(logger), cfg.DefaultSubject)
	redactor := pii.NewRedactor(cfg.AuditRedactFields, logger)
	pipeline := usecase.NewProcessEventUseCase(st.audit, st.notifications, factory, emitter, dedup, redactor, logger,
		usecase.ProcessEventConfig{
			Channel:        domain.ChannelKind(cfg.NotificationChannel),
			DefaultSubject: cfg.DefaultSubject,
			GroupID:        cfg.KafkaGroupID,
		})

	kafkaCfg := kafka.Config{
		Brokers:               cfg.KafkaBrokers,
		ClientID:              cfg.KafkaClientID,
		GroupID:               cfg.KafkaGroupID,
		Topics:                cfg.KafkaTopics,
		FromBeginning:         cfg.KafkaFromBeginning,
		CoordinatorBackoff:    cfg.CoordinatorBackoff,
		RetryBackoff:          cfg.RetryBackoff,
		CoordinatorErrorCodes: cfg.CoordinatorErrorCodes,
		CommitTimeout:         cfg.KafkaCommitTimeout,
	}
	consumer := kafka.NewConsumer(kafkaCfg, kafka.NewReaderConnector(kafkaCfg, logger), pipeline, m, logger)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil {
			logger.Error("consumer stopped with error", "error", err)
		}
	}()

	if !st.nativeTTL {
		sweeper := usecase.NewRetentionSweeper(st.audit, cfg.AuditRetention, cfg.RetentionSweepInterval, m, logger)
		go sweeper.Run(ctx)
	}

	// --- HTTP Server ---
	router := api.NewRouter(cfg, logger,
		usecase.NewNotificationUseCase(st.notifications, logger),
		usecase.NewProjectEventsUseCase(st.audit),
		usecase.NewAdminUseCase(consumer, h),
		h,
		prometheus.DefaultGatherer,
	)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting http server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	// Live streams only end when their connection is closed.
	h.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("consumer did not stop before the shutdown timeout")
	}

	logger.Info("notification service shut down gracefully")
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongorepo.Connect(ctx, cfg.MongoURI, cfg.KafkaClientID)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		audit := mongorepo.NewAuditRepository(db, logger)
		notifications := mongorepo.NewNotificationRepository(db, logger)
		if err := audit.EnsureIndexes(ctx, cfg.AuditRetention); err != nil {
			return nil, err
		}
		if err := notifications.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return &stores{
			audit:         audit,
			notifications: notifications,
			nativeTTL:     true,
			close: func() {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(disconnectCtx); err != nil {
					logger.Error("failed to disconnect from mongo", "error", err)
				}
			},
		}, nil

	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			audit:         postgres.NewAuditRepository(db, logger),
			notifications: postgres.NewNotificationRepository(db, logger),
			close:         func() { db.Close() },
		}, nil

	case config.StoreMemory:
		return &stores{
			audit:         memory.NewAuditRepository(),
			notifications: memory.NewNotificationRepository(),
			close:         func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// runRelay keeps the fan-out subscription alive until ctx is cancelled.
func runRelay(ctx context.Context, relay *redisrepo.Relay, logger *slog.Logger) {
	for {
		err := relay.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("fan-out relay stopped, resubscribing", "error", err, "delay", relayRetryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetryDelay):
		}
	}
}
