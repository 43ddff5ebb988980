package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/notification-service/internal/domain"
)

// AuditRepository implements domain.AuditRepository on PostgreSQL.
// Postgres has no TTL, so retention relies on PurgeBefore being called.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new PostgreSQL audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger.With("component", "postgres_audit")}
}

func (r *AuditRepository) Append(ctx context.Context, event domain.AuditEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return "", &domain.StoreError{Op: "append audit event", Err: err}
	}

	const query = `INSERT INTO audit_events (id, action, metadata, user_id, entity_id, service_source, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.Action, metadata, nullString(event.UserID), nullString(event.EntityID), event.ServiceSource, event.Timestamp)
	if err != nil {
		return "", &domain.StoreError{Op: "append audit event", Err: err}
	}
	return event.ID, nil
}

func (r *AuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	query, args := buildAuditQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "query audit events", Err: err}
	}
	defer rows.Close()

	events := make([]domain.AuditEvent, 0)
	for rows.Next() {
		var (
			e        domain.AuditEvent
			metadata []byte
			userID   sql.NullString
			entityID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &metadata, &userID, &entityID, &e.ServiceSource, &e.Timestamp); err != nil {
			return nil, &domain.StoreError{Op: "scan audit event", Err: err}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				r.logger.Warn("failed to decode audit metadata, returning event without it", "id", e.ID, "error", err)
			}
		}
		e.UserID = stringPtr(userID)
		e.EntityID = stringPtr(entityID)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "query audit events", Err: err}
	}
	return events, nil
}

func (r *AuditRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, &domain.StoreError{Op: "purge audit events", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StoreError{Op: "purge audit events", Err: err}
	}
	return n, nil
}

// buildAuditQuery renders the filter as a parameterized SELECT, newest first.
func buildAuditQuery(f domain.AuditFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var project []string
	if f.ProjectNumber != nil {
		n := arg(*f.ProjectNumber)
		project = append(project,
			"metadata->'projectId' = to_jsonb("+n+"::bigint)",
			"metadata->'projet' = to_jsonb("+n+"::bigint)")
	}
	if f.ProjectID != "" {
		project = append(project, "(entity_id = "+arg(f.ProjectID)+" AND service_source = "+arg(domain.ProjectSource)+")")
	}
	if len(project) > 0 {
		where = append(where, "("+strings.Join(project, " OR ")+")")
	}
	if f.ServiceSource != "" {
		where = append(where, "service_source = "+arg(f.ServiceSource))
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = "+arg(f.EntityID))
	}
	if f.UserID != "" {
		where = append(where, "user_id = "+arg(f.UserID))
	}

	var b strings.Builder
	b.WriteString("SELECT id, action, metadata, user_id, entity_id, service_source, timestamp FROM audit_events")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	return b.String(), args
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
