package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roomdesk/apiserver/internal/mq"
)

// Publisher is the publishing half of an mq.Backend.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Subscriber is the consuming half of an mq.Backend.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// QueueSender hands mails to a message queue for a Worker to deliver.
type QueueSender struct {
	publisher Publisher
	channel   string
	now       func() time.Time
}

func NewQueueSender(publisher Publisher, channel string) *QueueSender {
	return &QueueSender{publisher: publisher, channel: channel, now: time.Now}
}

func (s *QueueSender) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(Message{
		ID:       uuid.NewString(),
		To:       to,
		Subject:  subject,
		Body:     body,
		QueuedAt: s.now().UTC(),
	})
	if err != nil {
		return &MailError{To: to, Err: err}
	}

	attrs := map[string]string{mq.ContentTypeAttribute: "application/json"}
	if _, err := s.publisher.Publish(ctx, s.channel, payload, attrs); err != nil {
		return &MailError{To: to, Err: fmt.Errorf("publish to %s: %w", s.channel, err)}
	}
	return nil
}

// Worker drains the mail queue into a Sender.
type Worker struct {
	subscriber Subscriber
	channel    string
	sender     Sender
	logger     *slog.Logger
}

func NewWorker(subscriber Subscriber, channel string, sender Sender, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{subscriber: subscriber, channel: channel, sender: sender, logger: logger}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "mail worker started", "channel", w.channel)
	err := w.subscriber.Subscribe(ctx, w.channel, w.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var mail Message
	if err := json.Unmarshal(msg.Data, &mail); err != nil {
		w.logger.ErrorContext(ctx, "dead-lettering malformed mail", "message_id", msg.ID, "err", err)
		return mq.Permanent(err)
	}
	if strings.TrimSpace(mail.To) == "" {
		w.logger.ErrorContext(ctx, "dead-lettering mail without recipient", "message_id", msg.ID, "mail_id", mail.ID)
		return mq.Permanent(errors.New("missing recipient"))
	}

	if err := w.sender.Send(ctx, mail.To, mail.Subject, mail.Body); err != nil {
		w.logger.WarnContext(ctx, "mail delivery failed", "mail_id", mail.ID, "to", mail.To, "err", err)
		return err
	}
	w.logger.InfoContext(ctx, "mail delivered", "mail_id", mail.ID, "to", mail.To)
	return nil
}
