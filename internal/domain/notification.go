package domain

import (
	"context"
	"time"
)

// NotificationType classifies how a notification should be presented.
type NotificationType string

const (
	TypeInfo    NotificationType = "INFO"
	TypeWarning NotificationType = "WARNING"
	TypeSuccess NotificationType = "SUCCESS"
	TypeError   NotificationType = "ERROR"
)

// ParseNotificationType returns the matching type, or TypeInfo for anything unknown.
func ParseNotificationType(s string) NotificationType {
	switch t := NotificationType(s); t {
	case TypeInfo, TypeWarning, TypeSuccess, TypeError:
		return t
	default:
		return TypeInfo
	}
}

// Notification is an actionable item surfaced to one user.
type Notification struct {
	ID        string           `json:"_id" bson:"_id"`
	UserID    string           `json:"userId" bson:"userId"`
	Subject   string           `json:"subject" bson:"subject"`
	Content   string           `json:"content" bson:"content"`
	Type      NotificationType `json:"type" bson:"type"`
	IsRead    bool             `json:"isRead" bson:"isRead"`
	CreatedAt time.Time        `json:"createdAt" bson:"createdAt"`
}

// Validate checks the fields a store requires before insert.
func (n *Notification) Validate() error {
	if n.UserID == "" {
		return ErrMissingUser
	}
	return nil
}

// ChannelKind names a notification delivery channel.
type ChannelKind string

const (
	ChannelInApp ChannelKind = "in-app"
	ChannelEmail ChannelKind = "email"
)

// RealtimeEventNotification is the event name pushed to live connections.
const RealtimeEventNotification = "notification"

// NotificationVariant is a channel-specific notification built for one event.
// It is used once and never persisted itself.
type NotificationVariant interface {
	Kind() ChannelKind
	RecipientID() string
	Message() string
	Dispatch(ctx context.Context) error
}
