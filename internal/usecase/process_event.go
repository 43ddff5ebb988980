package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/V4T54L/notification-service/internal/adapter/normalizer"
	"github.com/V4T54L/notification-service/internal/domain"
)

// ChannelFactory builds a notification variant for a delivery channel.
type ChannelFactory interface {
	Create(kind domain.ChannelKind, recipientID, message string) (domain.NotificationVariant, error)
}

// MetadataRedactor masks sensitive audit metadata.
type MetadataRedactor interface {
	Redact(metadata map[string]any) map[string]any
}

// ProcessEventConfig carries the pipeline settings.
type ProcessEventConfig struct {
	Channel        domain.ChannelKind
	DefaultSubject string
	GroupID        string
}

// ProcessEventUseCase runs one broker message through
// normalize -> audit append -> channel factory -> notification insert -> emit.
type ProcessEventUseCase struct {
	audit         domain.AuditRepository
	notifications domain.NotificationRepository
	factory       ChannelFactory
	emitter       domain.Emitter
	dedup         domain.Deduplicator
	redactor      MetadataRedactor
	logger        *slog.Logger
	cfg           ProcessEventConfig

	now   func() time.Time
	newID func() string
}

// NewProcessEventUseCase creates the pipeline. dedup and redactor may be nil.
func NewProcessEventUseCase(
	audit domain.AuditRepository,
	notifications domain.NotificationRepository,
	factory ChannelFactory,
	emitter domain.Emitter,
	dedup domain.Deduplicator,
	redactor MetadataRedactor,
	logger *slog.Logger,
	cfg ProcessEventConfig,
) *ProcessEventUseCase {
	if cfg.Channel == "" {
		cfg.Channel = domain.ChannelInApp
	}
	return &ProcessEventUseCase{
		audit:         audit,
		notifications: notifications,
		factory:       factory,
		emitter:       emitter,
		dedup:         dedup,
		redactor:      redactor,
		logger:        logger.With("component", "pipeline"),
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// Handle processes a single message. It is the per-message isolation
// boundary: every failure is returned as an error and nothing is retried.
// The caller commits the offset whatever the outcome.
func (uc *ProcessEventUseCase) Handle(ctx context.Context, msg domain.Message) (err error) {
	ctx, span := otel.Tracer("notification-pipeline").Start(ctx, "ProcessMessage")
	span.SetAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	key := uc.dedupKey(msg)
	if uc.dedup != nil {
		seen, derr := uc.dedup.Seen(ctx, key)
		if derr != nil {
			uc.logger.Warn("dedup lookup failed, processing anyway", "key", key, "error", derr)
		} else if seen {
			uc.logger.Info("skipping already processed message", "key", key)
			return domain.ErrDuplicate
		}
		defer func() {
			if merr := uc.dedup.Mark(ctx, key); merr != nil {
				uc.logger.Warn("failed to record dedup key", "key", key, "error", merr)
			}
		}()
	}

	event, payload, err := normalizer.Normalize(msg.Topic, msg.Value)
	if err != nil {
		return err
	}
	event.ID = uc.newID()
	event.Timestamp = uc.now()
	if uc.redactor != nil {
		event.Metadata = uc.redactor.Redact(event.Metadata)
	}

	if _, err := uc.audit.Append(ctx, event); err != nil {
		return asStoreError("append audit event", err)
	}

	recipientID := payload.Recipient()
	if recipientID == "" {
		uc.logger.Debug("no recipient resolved, audit only", "topic", msg.Topic, "action", event.Action)
		return nil
	}

	message := fmt.Sprintf("Event %s occurred on %s", event.Action, msg.Topic)
	variant, err := uc.factory.Create(uc.cfg.Channel, recipientID, message)
	if err != nil {
		return err
	}
	if err := variant.Dispatch(ctx); err != nil {
		uc.logger.Warn("channel dispatch failed", "channel", variant.Kind(), "recipient_id", recipientID, "error", err)
	}

	notification := domain.Notification{
		ID:        uc.newID(),
		UserID:    variant.RecipientID(),
		Subject:   firstNonEmpty(payload.String("subject"), uc.cfg.DefaultSubject),
		Content:   firstNonEmpty(payload.String("content"), variant.Message()),
		Type:      domain.ParseNotificationType(payload.String("type")),
		CreatedAt: uc.now(),
	}
	if _, err := uc.notifications.Insert(ctx, notification); err != nil {
		return asStoreError("insert notification", err)
	}

	if err := uc.emitter.Emit(ctx, recipientID, domain.RealtimeEventNotification, notification); err != nil {
		return fmt.Errorf("emit to %s: %w", recipientID, err)
	}

	uc.logger.Info("notification delivered",
		"topic", msg.Topic,
		"action", event.Action,
		"recipient_id", recipientID,
		"notification_id", notification.ID,
	)
	return nil
}

func (uc *ProcessEventUseCase) dedupKey(msg domain.Message) string {
	return fmt.Sprintf("%s/%s/%d/%d", uc.cfg.GroupID, msg.Topic, msg.Partition, msg.Offset)
}

func asStoreError(op string, err error) error {
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &domain.StoreError{Op: op, Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
