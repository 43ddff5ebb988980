package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/notification-service/internal/adapter/channel"
	"github.com/V4T54L/notification-service/internal/domain"
	"github.com/V4T54L/notification-service/internal/domain/mocks"
)

type fixture struct {
	audit         *mocks.MockAuditRepository
	notifications *mocks.MockNotificationRepository
	emitter       *mocks.MockEmitter
	dedup         *mocks.MockDeduplicator
	uc            *ProcessEventUseCase
}

func newFixture(t *testing.T, channelKind domain.ChannelKind, withDedup bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		audit:         &mocks.MockAuditRepository{},
		notifications: &mocks.MockNotificationRepository{},
		emitter:       &mocks.MockEmitter{},
	}
	var dedup domain.Deduplicator
	if withDedup {
		f.dedup = &mocks.MockDeduplicator{}
		dedup = f.dedup
	}
	factory := channel.NewFactory(logger, &mocks.MockMailer{}, "subject")
	f.uc = NewProcessEventUseCase(f.audit, f.notifications, factory, f.emitter, dedup, nil, logger, ProcessEventConfig{
		Channel:        channelKind,
		DefaultSubject: "Notification Système",
		GroupID:        "notification-group",
	})
	return f
}

func msg(topic, body string) domain.Message {
	return domain.Message{Topic: topic, Partition: 0, Offset: 7, Value: []byte(body)}
}

func TestProcessEventUseCase_Handle(t *testing.T) {
	t.Run("Project event with recipient", func(t *testing.T) {
		f := newFixture(t, domain.ChannelInApp, false)

		err := f.uc.Handle(context.Background(), msg("project.events", `{"projectId":42,"action":"STATUS_CHANGED","userId":"u1","keycloakId":"u1"}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(f.audit.Appended) != 1 {
			t.Fatalf("expected 1 audit event, got %d", len(f.audit.Appended))
		}
		event := f.audit.Appended[0]
		if event.EntityID == nil || *event.EntityID != "42" {
			t.Errorf("unexpected entityId: %v", event.EntityID)
		}
		if event.ServiceSource != "project" || event.Action != "STATUS_CHANGED" {
			t.Errorf("unexpected audit event: %+v", event)
		}
		if event.ID == "" || event.Timestamp.IsZero() {
			t.Errorf("expected id and timestamp to be set, got %+v", event)
		}

		if len(f.notifications.Inserted) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(f.notifications.Inserted))
		}
		n := f.notifications.Inserted[0]
		if n.UserID != "u1" || n.Type != domain.TypeInfo || n.IsRead {
			t.Errorf("unexpected notification: %+v", n)
		}
		if n.Content != "Event STATUS_CHANGED occurred on project.events" {
			t.Errorf("unexpected content: got %q", n.Content)
		}
		if n.Subject != "Notification Système" {
			t.Errorf("unexpected subject: got %q", n.Subject)
		}

		if len(f.emitter.Emitted) != 1 {
			t.Fatalf("expected 1 emit, got %d", len(f.emitter.Emitted))
		}
		if got := f.emitter.Emitted[0]; got.RecipientID != "u1" || got.Event != domain.RealtimeEventNotification {
			t.Errorf("unexpected emit: %+v", got)
		}
	})

	t.Run("Payload overrides content type and subject", func(t *testing.T) {
		f := newFixture(t, domain.ChannelInApp, false)

		err := f.uc.Handle(context.Background(), msg("import.jobs", `{"eventType":"IMPORT_DONE","user_id":"u2","content":"Import finished","type":"SUCCESS","subject":"Import"}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		n := f.notifications.Inserted[0]
		if n.Content != "Import finished" || n.Type != domain.TypeSuccess || n.Subject != "Import" || n.UserID != "u2" {
			t.Errorf("unexpected notification: %+v", n)
		}
	})

	t.Run("No recipient is audit only", func(t *testing.T) {
		f := newFixture(t, domain.ChannelInApp, false)

		err := f.uc.Handle(context.Background(), msg("article.events", `{"articleId":"a9","action":"PUBLISHED"}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.audit.Appended) != 1 {
			t.Errorf("expected 1 audit event, got %d", len(f.audit.Appended))
		}
		if len(f.notifications.Inserted) != 0 || len(f.emitter.Emitted) != 0 {
			t.Errorf("expected no notification and no emit")
		}
	})

	t.Run("Malformed payload", func(t *testing.T) {
		f := newFixture(t, domain.ChannelInApp, false)

		err := f.uc.Handle(context.Background(), msg("user.events", `{not json`))
		var malformed *domain.MalformedPayloadError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedPayloadError, got %v", err)
		}
		if len(f.audit.Appended) != 0 || len(f.notifications.Inserted) != 0 {
			t.Errorf("expected no writes for a malformed payload")
		}
	})

	t.Run("Audit store failure skips remaining stages", func(t *testing.T) {
		f := newFixture(t, domain.ChannelInApp, false)
		f.audit.AppendErr = errors.New("mongo down")

		err := f.uc.Handle(context.Background(), msg("user.events", `{"userId":"u1","action":"LOGIN"}`))
		var storeErr *domain.StoreError
		if !errors.As(err, &storeErr) {
			t.Fatalf("expected StoreError, got %v", err)
		}
		if len(f.notifications.Inserted) != 0 || len(f.emitter.Emitted) != 0 {
			t.Errorf("expected no notification after audit failure")
		}
	})

	t.Run("Notification store failure skips emit", func(t *testing.T) {
		f := newFixture(t, domain.ChannelInApp, false)
		f.notifications.InsertErr = errors.New("write conflict")

		err := f.uc.Handle(context.Background(), msg("user.events", `{"userId":"u1","action":"LOGIN"}`))
		var storeErr *domain.StoreError
		if !errors.As(err, &storeErr) {
			t.Fatalf("expected StoreError, got %v", err)
		}
		if len(f.audit.Appended) != 1 {
			t.Errorf("expected audit append to precede the failure")
		}
		if len(f.emitter.Emitted) != 0 {
			t.Errorf("expected no emit after insert failure")
		}
	})

	t.Run("Unsupported channel", func(t *testing.T) {
		f := newFixture(t, domain.ChannelKind("sms"), false)

		err := f.uc.Handle(context.Background(), msg("user.events", `{"userId":"u1","action":"LOGIN"}`))
		var unsupported *domain.UnsupportedChannelError
		if !errors.As(err, &unsupported) {
			t.Fatalf("expected UnsupportedChannelError, got %v", err)
		}
		if len(f.audit.Appended) != 1 {
			t.Errorf("expected the audit event to be kept")
		}
		if len(f.notifications.Inserted) != 0 {
			t.Errorf("expected no notification for an unsupported channel")
		}
	})

	t.Run("Emit failure is reported after persistence", func(t *testing.T) {
		f := newFixture(t, domain.ChannelInApp, false)
		f.emitter.EmitErr = errors.New("relay down")

		err := f.uc.Handle(context.Background(), msg("user.events", `{"userId":"u1"}`))
		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if len(f.notifications.Inserted) != 1 {
			t.Errorf("expected notification to be persisted before emit")
		}
	})
}

func TestProcessEventUseCase_Dedup(t *testing.T) {
	f := newFixture(t, domain.ChannelInApp, true)
	m := msg("user.events", `{"userId":"u1","action":"LOGIN"}`)

	if err := f.uc.Handle(context.Background(), m); err != nil {
		t.Fatalf("first delivery: expected no error, got %v", err)
	}
	if err := f.uc.Handle(context.Background(), m); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("redelivery: expected ErrDuplicate, got %v", err)
	}
	if len(f.audit.Appended) != 1 || len(f.notifications.Inserted) != 1 {
		t.Errorf("expected exactly one audit event and notification, got %d and %d",
			len(f.audit.Appended), len(f.notifications.Inserted))
	}
	if _, ok := f.dedup.Keys["notification-group/user.events/0/7"]; !ok {
		t.Errorf("expected dedup key to be recorded, got %v", f.dedup.Keys)
	}

	t.Run("Lookup failure processes anyway", func(t *testing.T) {
		f := newFixture(t, domain.ChannelInApp, true)
		f.dedup.SeenErr = errors.New("redis down")

		if err := f.uc.Handle(context.Background(), m); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.audit.Appended) != 1 {
			t.Errorf("expected message to be processed")
		}
	})
}
