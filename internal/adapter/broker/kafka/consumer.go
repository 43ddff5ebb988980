// Package kafka owns the broker subscription lifecycle: connect, subscribe,
// pull, hand each message to the pipeline, commit, and reconnect on failure.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/V4T54L/notification-service/internal/adapter/metrics"
	"github.com/V4T54L/notification-service/internal/domain"
)

const (
	tierCoordinator = "coordinator"
	tierDefault     = "default"
)

// Handler runs the per-message pipeline.
type Handler interface {
	Handle(ctx context.Context, msg domain.Message) error
}

// Session is a subscribed consumer-group member. *kafka.Reader implements it.
type Session interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Connector opens a new Session.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// Config holds the consumer settings.
type Config struct {
	Brokers               []string
	ClientID              string
	GroupID               string
	Topics                []string
	FromBeginning         bool
	CoordinatorBackoff    time.Duration
	RetryBackoff          time.Duration
	CoordinatorErrorCodes []int
	CommitTimeout         time.Duration
}

// Consumer drives one Session at a time and reconnects indefinitely.
// Messages are handled one by one; the offset of a message is committed
// only after its handler returned, whatever the outcome.
type Consumer struct {
	cfg       Config
	connector Connector
	handler   Handler
	metrics   *metrics.Metrics
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.RWMutex
	status    domain.ConsumerStatus
	committed map[string]domain.PartitionOffset
}

// NewConsumer creates a Consumer. m may be nil.
func NewConsumer(cfg Config, connector Connector, handler Handler, m *metrics.Metrics, logger *slog.Logger) *Consumer {
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 5 * time.Second
	}
	c := &Consumer{
		cfg:       cfg,
		connector: connector,
		handler:   handler,
		metrics:   m,
		logger:    logger.With("component", "consumer", "group_id", cfg.GroupID),
		sleep:     sleepContext,
		committed: make(map[string]domain.PartitionOffset),
	}
	c.status = domain.ConsumerStatus{
		State:   domain.StateDisconnected.String(),
		GroupID: cfg.GroupID,
		Topics:  slices.Clone(cfg.Topics),
	}
	return c
}

// Run consumes until ctx is cancelled. Connection failures never end the
// loop; they only select the backoff before the next attempt.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("starting broker consumer", "brokers", c.cfg.Brokers, "topics", c.cfg.Topics)
	defer c.setState(domain.StateShuttingDown)

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.setState(domain.StateConnecting)
		session, err := c.connect(ctx)
		if err == nil {
			c.setState(domain.StateSubscribed)
			c.logger.Info("subscribed to topics", "topics", c.cfg.Topics)
			c.setState(domain.StateConsuming)
			err = c.consume(ctx, session)
			if cerr := session.Close(); cerr != nil {
				c.logger.Warn("failed to close broker session", "error", cerr)
			}
		}

		if ctx.Err() != nil {
			c.logger.Info("broker consumer stopped")
			return nil
		}

		delay, tier := c.backoff(err)
		c.recordFailure(err, tier)
		c.setState(domain.StateDisconnected)
		c.logger.Warn("broker connection failed, retrying", "error", err, "tier", tier, "delay", delay)

		if err := c.sleep(ctx, delay); err != nil {
			c.logger.Info("broker consumer stopped")
			return nil
		}
	}
}

// Status returns a snapshot of the consumer lifecycle.
func (c *Consumer) Status() domain.ConsumerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.status
	s.Topics = slices.Clone(c.status.Topics)
	if c.status.LastErrorAt != nil {
		t := *c.status.LastErrorAt
		s.LastErrorAt = &t
	}
	s.CommittedUntil = make([]domain.PartitionOffset, 0, len(c.committed))
	for _, po := range c.committed {
		s.CommittedUntil = append(s.CommittedUntil, po)
	}
	slices.SortFunc(s.CommittedUntil, func(a, b domain.PartitionOffset) int {
		if a.Topic != b.Topic {
			if a.Topic < b.Topic {
				return -1
			}
			return 1
		}
		return a.Partition - b.Partition
	})
	return s
}

func (c *Consumer) connect(ctx context.Context) (Session, error) {
	ctx, span := otel.Tracer("notification-consumer").Start(ctx, "Connect")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.kafka.consumer.group", c.cfg.GroupID),
		attribute.StringSlice("messaging.kafka.topics", c.cfg.Topics),
	)

	session, err := c.connector.Connect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var connErr *domain.ConnectionError
		if !errors.As(err, &connErr) {
			err = &domain.ConnectionError{Stage: "connect", Err: err}
		}
		return nil, err
	}
	return session, nil
}

func (c *Consumer) consume(ctx context.Context, session Session) error {
	for {
		m, err := session.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &domain.ConnectionError{Stage: "fetch", Err: err}
		}

		c.process(ctx, m)

		// The in-flight message is committed even when shutdown has begun.
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CommitTimeout)
		err = session.CommitMessages(commitCtx, m)
		cancel()
		if err != nil {
			return &domain.ConnectionError{Stage: "commit", Err: err}
		}
		c.recordCommit(m)
	}
}

// process is the per-message isolation boundary.
func (c *Consumer) process(ctx context.Context, m kafka.Message) {
	start := time.Now()
	err := c.handle(context.WithoutCancel(ctx), toDomainMessage(m))

	status := "ok"
	if err != nil {
		status = "failed"
		if errors.Is(err, domain.ErrDuplicate) {
			status = "duplicate"
		} else {
			c.metrics.StageFailure(failedStage(err))
			c.logger.Error("message processing failed, skipping",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}
	}
	c.metrics.ObserveMessage(m.Topic, status, time.Since(start).Seconds())

	c.mu.Lock()
	c.status.Processed++
	if status == "failed" {
		c.status.Failed++
	}
	c.mu.Unlock()
}

func (c *Consumer) handle(ctx context.Context, msg domain.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling message: %v", r)
		}
	}()
	return c.handler.Handle(ctx, msg)
}

// backoff picks the short tier for the configured coordinator error codes
// and the long tier for everything else.
func (c *Consumer) backoff(err error) (time.Duration, string) {
	var kerr kafka.Error
	if errors.As(err, &kerr) && slices.Contains(c.cfg.CoordinatorErrorCodes, int(kerr)) {
		return c.cfg.CoordinatorBackoff, tierCoordinator
	}
	return c.cfg.RetryBackoff, tierDefault
}

func (c *Consumer) setState(s domain.ConsumerState) {
	c.mu.Lock()
	c.status.State = s.String()
	c.mu.Unlock()
	c.metrics.SetConsumerState(int(s))
}

func (c *Consumer) recordFailure(err error, tier string) {
	now := time.Now().UTC()
	c.mu.Lock()
	c.status.Reconnects++
	if err != nil {
		c.status.LastError = err.Error()
	}
	c.status.LastErrorAt = &now
	c.mu.Unlock()
	c.metrics.Reconnect(tier)
}

func (c *Consumer) recordCommit(m kafka.Message) {
	key := fmt.Sprintf("%s/%d", m.Topic, m.Partition)
	c.mu.Lock()
	c.committed[key] = domain.PartitionOffset{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset}
	c.mu.Unlock()
}

func toDomainMessage(m kafka.Message) domain.Message {
	return domain.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
	}
}

// failedStage names the pipeline stage for the stage failure metric.
func failedStage(err error) string {
	var (
		malformed   *domain.MalformedPayloadError
		unsupported *domain.UnsupportedChannelError
		store       *domain.StoreError
	)
	switch {
	case errors.As(err, &malformed):
		return "normalize"
	case errors.As(err, &unsupported):
		return "channel"
	case errors.As(err, &store):
		return "store"
	default:
		return "emit"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
