package domain

import (
	"context"
	"time"
)

// AuditRepository is the append-only store of audit events.
type AuditRepository interface {
	// Append stores the event and returns its id.
	Append(ctx context.Context, event AuditEvent) (string, error)

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// PurgeBefore removes events recorded before cutoff and reports how many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationRepository persists notifications keyed by recipient.
type NotificationRepository interface {
	Insert(ctx context.Context, n Notification) (string, error)

	// FindByUser returns the newest notifications first. A limit <= 0 means no limit.
	FindByUser(ctx context.Context, userID string, limit int) ([]Notification, error)

	// FindByID returns ErrNotFound when no notification has the id.
	FindByID(ctx context.Context, id string) (*Notification, error)

	// UpdateReadState sets isRead and returns the updated notification.
	UpdateReadState(ctx context.Context, id string, isRead bool) (*Notification, error)

	// MarkAllRead flips every unread notification of the user and returns the count changed.
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	DeleteByID(ctx context.Context, id string) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// Emitter delivers a payload to every live connection of a recipient.
type Emitter interface {
	Emit(ctx context.Context, recipientID, event string, payload any) error
}

// Deduplicator remembers which broker messages already went through the pipeline.
type Deduplicator interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Mailer hands an email off to an external transport.
type Mailer interface {
	Send(ctx context.Context, recipientID, subject, body string) error
}
