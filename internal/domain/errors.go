package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("notification not found")
	ErrForbidden   = errors.New("not authorized")
	ErrMissingUser = errors.New("userId is required")

	// ErrDuplicate marks a redelivered message that was already processed.
	ErrDuplicate = errors.New("message already processed")
)

// MalformedPayloadError means a broker message could not be decoded.
// The message is dropped, never retried.
type MalformedPayloadError struct {
	Topic string
	Err   error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload on %s: %v", e.Topic, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// UnsupportedChannelError is returned by the channel factory for an unknown kind.
type UnsupportedChannelError struct {
	Kind ChannelKind
}

func (e *UnsupportedChannelError) Error() string {
	return fmt.Sprintf("unknown notification type: %s", e.Kind)
}

// StoreError wraps a persistence failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ConnectionError is a broker-level failure. It always leads to a reconnect.
type ConnectionError struct {
	Stage string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
