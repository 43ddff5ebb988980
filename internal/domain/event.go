package domain

import "time"

// UnknownAction is stored when a payload carries neither action nor eventType.
const UnknownAction = "UNKNOWN_ACTION"

// AuditEvent is the durable trace of an event observed on the broker.
type AuditEvent struct {
	ID            string         `json:"id" bson:"_id"`
	Action        string         `json:"action" bson:"action"`
	Metadata      map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	UserID        *string        `json:"userId" bson:"userId,omitempty"`
	EntityID      *string        `json:"entityId" bson:"entityId,omitempty"`
	ServiceSource string         `json:"serviceSource" bson:"serviceSource"`
	Timestamp     time.Time      `json:"timestamp" bson:"timestamp"`
}

// AuditFilter selects audit events. Zero-valued fields are ignored.
//
// ProjectID and ProjectNumber together form the project history query: an
// event matches when metadata.projectId or metadata.projet equals
// ProjectNumber, or when it was sourced from the project service and its
// entityId equals ProjectID. The remaining fields are ANDed with that.
type AuditFilter struct {
	ProjectID     string
	ProjectNumber *int64
	ServiceSource string
	EntityID      string
	UserID        string
	Limit         int
}

// ProjectSource is the serviceSource of events consumed from project.events.
const ProjectSource = "project"

// Message is a single record pulled from the broker.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}
