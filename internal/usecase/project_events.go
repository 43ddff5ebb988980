package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/V4T54L/notification-service/internal/adapter/normalizer"
	"github.com/V4T54L/notification-service/internal/domain"
)

const defaultActorName = "Utilisateur"

// ProjectEvent is the legacy shape of one entry in a project's history.
type ProjectEvent struct {
	ID        string         `json:"id_event"`
	Action    string         `json:"action"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
	User      *string        `json:"user"`
	Projet    any            `json:"projet"`
	Article   any            `json:"article"`
	Bloc      any            `json:"bloc"`
	Ouvrage   any            `json:"ouvrage"`
	Lot       any            `json:"lot"`
	UserData  any            `json:"userData"`
}

// ProjectUser is the fallback userData of a ProjectEvent.
type ProjectUser struct {
	ID       *string `json:"id"`
	Username string  `json:"nom_utilisateur"`
	Email    string  `json:"email"`
}

// ProjectEventsUseCase answers project history queries against the audit store.
type ProjectEventsUseCase struct {
	audit domain.AuditRepository
}

// NewProjectEventsUseCase creates a ProjectEventsUseCase.
func NewProjectEventsUseCase(audit domain.AuditRepository) *ProjectEventsUseCase {
	return &ProjectEventsUseCase{audit: audit}
}

// History returns every audit event attached to projectID, newest first.
func (uc *ProjectEventsUseCase) History(ctx context.Context, projectID string) ([]ProjectEvent, error) {
	filter := domain.AuditFilter{ProjectID: projectID}
	if n, ok := parseLeadingInt(projectID); ok {
		filter.ProjectNumber = &n
	}

	events, err := uc.audit.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]ProjectEvent, 0, len(events))
	for _, e := range events {
		out = append(out, toProjectEvent(e))
	}
	return out, nil
}

func toProjectEvent(e domain.AuditEvent) ProjectEvent {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	projet := firstTruthy(meta, "projectId", "projet")
	if projet == nil && e.ServiceSource == domain.ProjectSource && e.EntityID != nil {
		if n, ok := parseLeadingInt(*e.EntityID); ok {
			projet = n
		}
	}

	var userData any = meta["userData"]
	if userData == nil {
		name := defaultActorName
		if s := normalizer.Payload(meta).String("actorName"); s != "" {
			name = s
		} else if s := normalizer.Payload(meta).String("userName"); s != "" {
			name = s
		}
		userData = ProjectUser{ID: e.UserID, Username: name}
	}

	return ProjectEvent{
		ID:        e.ID,
		Action:    e.Action,
		CreatedAt: e.Timestamp,
		Metadata:  meta,
		User:      e.UserID,
		Projet:    projet,
		Article:   metaRef(meta, "article"),
		Bloc:      metaRef(meta, "bloc"),
		Ouvrage:   metaRef(meta, "ouvrage"),
		Lot:       metaRef(meta, "lot"),
		UserData:  userData,
	}
}

// metaRef returns meta["<name>Id"], else meta["<name>"], else nil.
func metaRef(meta map[string]any, name string) any {
	return firstTruthy(meta, name+"Id", name)
}

// firstTruthy returns the first value under keys that is not nil, false, "" or 0.
func firstTruthy(meta map[string]any, keys ...string) any {
	for _, k := range keys {
		if v := meta[k]; normalizer.Truthy(v) {
			return v
		}
	}
	return nil
}

// parseLeadingInt reads the optionally signed run of digits at the start of s,
// ignoring leading whitespace. "42abc" gives 42; "abc" fails.
func parseLeadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
