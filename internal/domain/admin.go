package domain

import "time"

// ConsumerState is a position in the broker consumer lifecycle.
type ConsumerState int

const (
	StateDisconnected ConsumerState = iota
	StateConnecting
	StateSubscribed
	StateConsuming
	StateShuttingDown
)

func (s ConsumerState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateConsuming:
		return "consuming"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// PartitionOffset is the last offset committed for one topic partition.
type PartitionOffset struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Offset    int64  `json:"offset"`
}

// ConsumerStatus is a point-in-time view of the broker consumer.
type ConsumerStatus struct {
	State          string            `json:"state"`
	GroupID        string            `json:"group_id"`
	Topics         []string          `json:"topics"`
	Reconnects     int64             `json:"reconnects"`
	LastError      string            `json:"last_error,omitempty"`
	LastErrorAt    *time.Time        `json:"last_error_at,omitempty"`
	Processed      int64             `json:"processed"`
	Failed         int64             `json:"failed"`
	CommittedUntil []PartitionOffset `json:"committed,omitempty"`
}
