// Package memory provides process-local stores. Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/notification-service/internal/domain"
)

// AuditRepository implements domain.AuditRepository in memory.
type AuditRepository struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewAuditRepository creates an empty AuditRepository.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(ctx context.Context, event domain.AuditEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return event.ID, nil
}

func (r *AuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	r.mu.RLock()
	matched := make([]domain.AuditEvent, 0)
	for _, e := range r.events {
		if Matches(e, filter) {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *AuditRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var removed int64
	for _, e := range r.events {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return removed, nil
}

// Matches reports whether an event satisfies the filter.
func Matches(e domain.AuditEvent, f domain.AuditFilter) bool {
	if f.ServiceSource != "" && e.ServiceSource != f.ServiceSource {
		return false
	}
	if f.EntityID != "" && (e.EntityID == nil || *e.EntityID != f.EntityID) {
		return false
	}
	if f.UserID != "" && (e.UserID == nil || *e.UserID != f.UserID) {
		return false
	}
	if f.ProjectID == "" && f.ProjectNumber == nil {
		return true
	}
	if f.ProjectNumber != nil {
		if numberEquals(e.Metadata["projectId"], *f.ProjectNumber) || numberEquals(e.Metadata["projet"], *f.ProjectNumber) {
			return true
		}
	}
	return f.ProjectID != "" && e.ServiceSource == domain.ProjectSource &&
		e.EntityID != nil && *e.EntityID == f.ProjectID
}

func numberEquals(v any, n int64) bool {
	switch t := v.(type) {
	case int64:
		return t == n
	case int:
		return int64(t) == n
	case int32:
		return int64(t) == n
	case float64:
		return t == float64(n)
	default:
		return false
	}
}
