// Package channel builds notification variants for each delivery channel.
package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/V4T54L/notification-service/internal/domain"
)

// Constructor builds a variant for one recipient and message.
type Constructor func(recipientID, message string) domain.NotificationVariant

// Factory is a dispatch table of channel constructors keyed by kind.
type Factory struct {
	mu           sync.RWMutex
	constructors map[domain.ChannelKind]Constructor
}

// NewFactory returns a factory with the in-app and email channels registered.
func NewFactory(logger *slog.Logger, mailer domain.Mailer, emailSubject string) *Factory {
	f := &Factory{constructors: make(map[domain.ChannelKind]Constructor)}
	f.Register(domain.ChannelInApp, func(recipientID, message string) domain.NotificationVariant {
		return &InApp{recipientID: recipientID, message: message, logger: logger}
	})
	f.Register(domain.ChannelEmail, func(recipientID, message string) domain.NotificationVariant {
		return &Email{recipientID: recipientID, message: message, subject: emailSubject, mailer: mailer}
	})
	return f
}

// Register adds or replaces the constructor for kind.
func (f *Factory) Register(kind domain.ChannelKind, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[kind] = ctor
}

// Create returns a variant of the given kind or an UnsupportedChannelError.
func (f *Factory) Create(kind domain.ChannelKind, recipientID, message string) (domain.NotificationVariant, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[kind]
	f.mu.RUnlock()
	if !ok {
		return nil, &domain.UnsupportedChannelError{Kind: kind}
	}
	return ctor(recipientID, message), nil
}

// InApp is delivered through the live fan-out hub after persistence, so its
// own dispatch only records the hand-off.
type InApp struct {
	recipientID string
	message     string
	logger      *slog.Logger
}

func (n *InApp) Kind() domain.ChannelKind { return domain.ChannelInApp }
func (n *InApp) RecipientID() string      { return n.recipientID }
func (n *InApp) Message() string          { return n.message }

func (n *InApp) Dispatch(ctx context.Context) error {
	n.logger.Info("in-app notification queued", "recipient_id", n.recipientID, "message", n.message)
	return nil
}

// Email hands the message to a Mailer.
type Email struct {
	recipientID string
	message     string
	subject     string
	mailer      domain.Mailer
}

func (n *Email) Kind() domain.ChannelKind { return domain.ChannelEmail }
func (n *Email) RecipientID() string      { return n.recipientID }
func (n *Email) Message() string          { return n.message }

func (n *Email) Dispatch(ctx context.Context) error {
	return n.mailer.Send(ctx, n.recipientID, n.subject, n.message)
}
