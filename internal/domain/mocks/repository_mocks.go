package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/notification-service/internal/domain"
)

// MockAuditRepository is a mock implementation of domain.AuditRepository for testing.
type MockAuditRepository struct {
	mu          sync.Mutex
	Appended    []domain.AuditEvent
	QueryResult []domain.AuditEvent
	LastFilter  domain.AuditFilter
	PurgeCutoff time.Time
	PurgeResult int64
	AppendErr   error
	QueryErr    error
	PurgeErr    error
}

func (m *MockAuditRepository) Append(ctx context.Context, event domain.AuditEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return "", m.AppendErr
	}
	m.Appended = append(m.Appended, event)
	return event.ID, nil
}

func (m *MockAuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastFilter = filter
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	return m.QueryResult, nil
}

func (m *MockAuditRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PurgeCutoff = cutoff
	if m.PurgeErr != nil {
		return 0, m.PurgeErr
	}
	return m.PurgeResult, nil
}

// AppendedCount returns how many events were appended so far.
func (m *MockAuditRepository) AppendedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Appended)
}

// MockNotificationRepository is a mock implementation of domain.NotificationRepository.
// Inserted notifications are kept so later lookups see them.
type MockNotificationRepository struct {
	mu            sync.Mutex
	Inserted      []domain.Notification
	Deleted       []string
	ReadUpdates   map[string]bool
	InsertErr     error
	FindErr       error
	UpdateErr     error
	DeleteErr     error
	CountErr      error
	MarkAllResult int64
}

func (m *MockNotificationRepository) Insert(ctx context.Context, n domain.Notification) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return "", m.InsertErr
	}
	m.Inserted = append(m.Inserted, n)
	return n.ID, nil
}

func (m *MockNotificationRepository) FindByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	var out []domain.Notification
	for i := len(m.Inserted) - 1; i >= 0; i-- {
		if m.Inserted[i].UserID == userID {
			out = append(out, m.Inserted[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockNotificationRepository) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for i := range m.Inserted {
		if m.Inserted[i].ID == id {
			n := m.Inserted[i]
			return &n, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockNotificationRepository) UpdateReadState(ctx context.Context, id string, isRead bool) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	for i := range m.Inserted {
		if m.Inserted[i].ID == id {
			m.Inserted[i].IsRead = isRead
			if m.ReadUpdates == nil {
				m.ReadUpdates = make(map[string]bool)
			}
			m.ReadUpdates[id] = isRead
			n := m.Inserted[i]
			return &n, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return 0, m.UpdateErr
	}
	var changed int64
	for i := range m.Inserted {
		if m.Inserted[i].UserID == userID && !m.Inserted[i].IsRead {
			m.Inserted[i].IsRead = true
			changed++
		}
	}
	m.MarkAllResult = changed
	return changed, nil
}

func (m *MockNotificationRepository) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for i := range m.Inserted {
		if m.Inserted[i].ID == id {
			m.Inserted = append(m.Inserted[:i], m.Inserted[i+1:]...)
			m.Deleted = append(m.Deleted, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockNotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	var n int64
	for _, item := range m.Inserted {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

// InsertedCount returns how many notifications are currently held.
func (m *MockNotificationRepository) InsertedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inserted)
}

// EmittedEvent is one call recorded by MockEmitter.
type EmittedEvent struct {
	RecipientID string
	Event       string
	Payload     any
}

// MockEmitter records every Emit call.
type MockEmitter struct {
	mu      sync.Mutex
	Emitted []EmittedEvent
	EmitErr error
}

func (m *MockEmitter) Emit(ctx context.Context, recipientID, event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EmitErr != nil {
		return m.EmitErr
	}
	m.Emitted = append(m.Emitted, EmittedEvent{RecipientID: recipientID, Event: event, Payload: payload})
	return nil
}

// MockDeduplicator is an in-memory domain.Deduplicator.
type MockDeduplicator struct {
	mu      sync.Mutex
	Keys    map[string]struct{}
	SeenErr error
	MarkErr error
}

func (m *MockDeduplicator) Seen(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SeenErr != nil {
		return false, m.SeenErr
	}
	_, ok := m.Keys[key]
	return ok, nil
}

func (m *MockDeduplicator) Mark(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	if m.Keys == nil {
		m.Keys = make(map[string]struct{})
	}
	m.Keys[key] = struct{}{}
	return nil
}

// SentMail is one message captured by MockMailer.
type SentMail struct {
	RecipientID string
	Subject     string
	Body        string
}

// MockMailer records every Send call.
type MockMailer struct {
	mu      sync.Mutex
	Sent    []SentMail
	SendErr error
}

func (m *MockMailer) Send(ctx context.Context, recipientID, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentMail{RecipientID: recipientID, Subject: subject, Body: body})
	return nil
}
