// Package normalizer maps raw broker payloads onto audit events.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/V4T54L/notification-service/internal/domain"
)

var errNotObject = errors.New("payload is not a JSON object")

// entityKeyByTopic names the payload field holding the entity id when the
// payload has no top-level id.
var entityKeyByTopic = map[string]string{
	"project.events": "projectId",
	"article.events": "articleId",
	"user.events":    "userId",
}

// Payload is a decoded broker message body. Numbers are int64 when integral,
// float64 otherwise.
type Payload map[string]any

// Decode parses raw as a single JSON object.
func Decode(topic string, raw []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &domain.MalformedPayloadError{Topic: topic, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &domain.MalformedPayloadError{Topic: topic, Err: errors.New("trailing data after JSON value")}
	}

	obj, ok := plain(v).(map[string]any)
	if !ok {
		return nil, &domain.MalformedPayloadError{Topic: topic, Err: errNotObject}
	}
	return Payload(obj), nil
}

// Normalize decodes raw and derives the audit event for it. The returned
// payload is reused by the caller for recipient resolution.
// ID and Timestamp are left for the caller to set.
func Normalize(topic string, raw []byte) (domain.AuditEvent, Payload, error) {
	p, err := Decode(topic, raw)
	if err != nil {
		return domain.AuditEvent{}, nil, err
	}
	return FromPayload(topic, p), p, nil
}

// FromPayload derives the audit event for an already decoded payload.
func FromPayload(topic string, p Payload) domain.AuditEvent {
	event := domain.AuditEvent{
		Action:        p.Action(),
		Metadata:      p.metadata(),
		UserID:        p.firstString("userId", "user_id"),
		EntityID:      p.entityID(topic),
		ServiceSource: ServiceSource(topic),
	}
	return event
}

// ServiceSource returns the topic namespace before its first dot.
func ServiceSource(topic string) string {
	if i := strings.IndexByte(topic, '.'); i >= 0 {
		return topic[:i]
	}
	return topic
}

// Action returns action, else eventType, else domain.UnknownAction.
func (p Payload) Action() string {
	if s := p.firstString("action", "eventType"); s != nil {
		return *s
	}
	return domain.UnknownAction
}

// Recipient returns keycloakId, else userId, else user_id. An empty result
// means no notification is produced for this payload.
func (p Payload) Recipient() string {
	if s := p.firstString("keycloakId", "userId", "user_id"); s != nil {
		return *s
	}
	return ""
}

// String returns the stringified value under key, or "" when it is absent or falsy.
func (p Payload) String(key string) string {
	if s := p.firstString(key); s != nil {
		return *s
	}
	return ""
}

func (p Payload) entityID(topic string) *string {
	if s := p.firstString("id"); s != nil {
		return s
	}
	if key, ok := entityKeyByTopic[topic]; ok {
		return p.firstString(key)
	}
	return nil
}

func (p Payload) metadata() map[string]any {
	if m, ok := p["metadata"].(map[string]any); ok {
		return m
	}
	return map[string]any(p)
}

func (p Payload) firstString(keys ...string) *string {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || !Truthy(v) {
			continue
		}
		s := Stringify(v)
		return &s
	}
	return nil
}

// Truthy treats nil, false, "", and 0 as absent.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// Stringify renders a decoded JSON value as text. Scalars are printed
// plainly; objects and arrays are re-encoded as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// plain replaces json.Number values with int64 or float64.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = plain(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = plain(item)
		}
		return t
	default:
		return v
	}
}
