package email

import (
	"context"
	"log/slog"
)

// Mailer delivers a message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to the log instead of sending them. Default for
// local runs where no delivery backend is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail delivered to log",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}
