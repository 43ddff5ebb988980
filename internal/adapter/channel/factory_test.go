package channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/notification-service/internal/domain"
	"github.com/V4T54L/notification-service/internal/domain/mocks"
)

func newTestFactory(mailer domain.Mailer) *Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)), mailer, "Subject")
}

func TestFactory_Create(t *testing.T) {
	f := newTestFactory(&mocks.MockMailer{})

	tests := []struct {
		kind domain.ChannelKind
	}{
		{domain.ChannelInApp},
		{domain.ChannelEmail},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			n, err := f.Create(tt.kind, "u1", "hello")
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if n.Kind() != tt.kind {
				t.Errorf("Kind() = %q, want %q", n.Kind(), tt.kind)
			}
			if n.RecipientID() != "u1" || n.Message() != "hello" {
				t.Errorf("variant = (%q, %q), want (u1, hello)", n.RecipientID(), n.Message())
			}
		})
	}
}

func TestFactory_Unsupported(t *testing.T) {
	f := newTestFactory(&mocks.MockMailer{})

	_, err := f.Create("sms", "u1", "hello")

	var unsupported *domain.UnsupportedChannelError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Create(sms) error = %v, want UnsupportedChannelError", err)
	}
	if unsupported.Kind != "sms" {
		t.Errorf("Kind = %q, want sms", unsupported.Kind)
	}
}

func TestFactory_Register(t *testing.T) {
	f := newTestFactory(&mocks.MockMailer{})
	f.Register("sms", func(recipientID, message string) domain.NotificationVariant {
		return &InApp{recipientID: recipientID, message: "sms:" + message, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	})

	n, err := f.Create("sms", "u2", "ping")
	if err != nil {
		t.Fatalf("Create(sms) error = %v", err)
	}
	if n.Message() != "sms:ping" {
		t.Errorf("Message() = %q, want sms:ping", n.Message())
	}
}

func TestEmail_Dispatch(t *testing.T) {
	mailer := &mocks.MockMailer{}
	f := newTestFactory(mailer)

	n, _ := f.Create(domain.ChannelEmail, "u1", "body")
	if err := n.Dispatch(context.Background()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(mailer.Sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.Sent))
	}
	got := mailer.Sent[0]
	if got.RecipientID != "u1" || got.Subject != "Subject" || got.Body != "body" {
		t.Errorf("sent = %+v", got)
	}

	mailer.SendErr = errors.New("smtp down")
	if err := n.Dispatch(context.Background()); err == nil {
		t.Error("Dispatch() error = nil, want mailer error")
	}
}

func TestInApp_Dispatch(t *testing.T) {
	f := newTestFactory(&mocks.MockMailer{})
	n, _ := f.Create(domain.ChannelInApp, "u1", "body")
	if err := n.Dispatch(context.Background()); err != nil {
		t.Errorf("Dispatch() error = %v", err)
	}
}
