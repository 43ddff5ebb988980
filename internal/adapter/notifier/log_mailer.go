package notifier

import (
	"context"
	"log/slog"
)

// LogMailer is a Mailer that only logs. It stands in until an SMTP or
// provider transport is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a new LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer")}
}

// Send logs the email that would have been sent.
func (m *LogMailer) Send(ctx context.Context, recipientID, subject, body string) error {
	m.logger.Info("email notification", "recipient_id", recipientID, "subject", subject, "body", body)
	return nil
}
