package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roomdesk/apiserver/config"
	"github.com/roomdesk/apiserver/internal/mq"
)

// Sender delivers a plain-text mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is a mail queued for delivery.
type Message struct {
	ID       string    `json:"id"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

// MailError reports a failed delivery.
type MailError struct {
	To  string
	Err error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("mail to %s: %v", e.To, e.Err)
}

func (e *MailError) Unwrap() error {
	return e.Err
}

// New returns the sender selected by cfg.Transport. The queue transport
// publishes through backend, which must be non-nil in that case.
func New(cfg config.MailConfig, backend mq.Backend, logger *slog.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", "log":
		return NewLogSender(logger), nil
	case "smtp":
		return NewSMTPSender(cfg)
	case "queue":
		if backend == nil {
			return nil, fmt.Errorf("mail transport %q needs a message queue", cfg.Transport)
		}
		return NewQueueSender(backend, cfg.QueueChannel), nil
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.Transport)
	}
}

// LogSender writes mails to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "mail", "to", to, "subject", subject, "body", body)
	return nil
}
