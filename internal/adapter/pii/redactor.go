package pii

import (
	"log/slog"
	"strings"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks configured keys in audit metadata before it is stored.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given keys. Matching is case-insensitive.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field != "" {
			fieldSet[field] = struct{}{}
		}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact returns metadata with every configured top-level key replaced by
// RedactedPlaceholder. The input map is never modified; when nothing matches
// it is returned as is.
func (r *Redactor) Redact(metadata map[string]any) map[string]any {
	if len(r.fieldsToRedact) == 0 || len(metadata) == 0 {
		return metadata
	}

	var out map[string]any
	redacted := 0
	for key := range metadata {
		if _, ok := r.fieldsToRedact[strings.ToLower(key)]; !ok {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(metadata))
			for k, v := range metadata {
				out[k] = v
			}
		}
		out[key] = RedactedPlaceholder
		redacted++
	}
	if out == nil {
		return metadata
	}
	r.logger.Debug("redacted audit metadata", "fields", redacted)
	return out
}
