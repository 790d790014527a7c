package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/roomdesk/apiserver/config"
	"github.com/roomdesk/apiserver/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

// loopback is an in-process mq backend that replays published messages to
// the subscriber.
type loopback struct {
	messages []published
	err      error
	results  []error
}

func (l *loopback) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	l.messages = append(l.messages, published{channel: channel, data: data, attrs: attrs})
	return "id", nil
}

func (l *loopback) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	for i, msg := range l.messages {
		if msg.channel != channel {
			continue
		}
		l.results = append(l.results, handler(ctx, mq.Message{ID: string(rune('a' + i)), Data: msg.data, Attributes: msg.attrs}))
	}
	return context.Canceled
}

func (l *loopback) Close() error { return nil }

type recorder struct {
	to   []string
	fail error
}

func (r *recorder) Send(_ context.Context, to, _, _ string) error {
	if r.fail != nil {
		return r.fail
	}
	r.to = append(r.to, to)
	return nil
}

func TestQueueRoundTrip(t *testing.T) {
	backend := &loopback{}
	sender := NewQueueSender(backend, "roomdesk.mail")
	sender.now = func() time.Time { return time.Date(2025, 7, 18, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, sender.Send(context.Background(), "ana@example.com", "Confirm your reservation", "code"))
	require.Len(t, backend.messages, 1)
	assert.Equal(t, "application/json", backend.messages[0].attrs[mq.ContentTypeAttribute])

	var queued Message
	require.NoError(t, json.Unmarshal(backend.messages[0].data, &queued))
	assert.NotEmpty(t, queued.ID)
	assert.Equal(t, "ana@example.com", queued.To)

	delivered := &recorder{}
	worker := NewWorker(backend, "roomdesk.mail", delivered, discard)
	require.NoError(t, worker.Run(context.Background()))
	assert.Equal(t, []string{"ana@example.com"}, delivered.to)
	assert.Equal(t, []error{nil}, backend.results)
}

func TestWorkerDropsMalformedAndRetriesFailures(t *testing.T) {
	backend := &loopback{messages: []published{
		{channel: "mail", data: []byte("{not json")},
		{channel: "mail", data: []byte(`{"id":"1","subject":"no recipient"}`)},
		{channel: "mail", data: []byte(`{"id":"2","to":"ana@example.com"}`)},
	}}
	boom := errors.New("relay down")
	worker := NewWorker(backend, "mail", &recorder{fail: boom}, discard)

	require.NoError(t, worker.Run(context.Background()))
	require.Len(t, backend.results, 3)
	assert.ErrorIs(t, backend.results[0], mq.ErrPermanent)
	assert.ErrorIs(t, backend.results[1], mq.ErrPermanent)
	assert.ErrorIs(t, backend.results[2], boom)
	assert.NotErrorIs(t, backend.results[2], mq.ErrPermanent)
}

func TestQueueSenderPublishFailure(t *testing.T) {
	sender := NewQueueSender(&loopback{err: errors.New("closed")}, "mail")

	err := sender.Send(context.Background(), "ana@example.com", "s", "b")
	var merr *MailError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "ana@example.com", merr.To)
}

func TestSMTPSender(t *testing.T) {
	sender, err := NewSMTPSender(config.MailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		SMTPUser: "user",
		From:     "reservations@example.com",
	})
	require.NoError(t, err)

	var gotAddr string
	var gotMsg []byte
	sender.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, "reservations@example.com", from)
		assert.Equal(t, []string{"ana@example.com"}, to)
		return nil
	}

	require.NoError(t, sender.Send(context.Background(), "ana@example.com", "Room reserved", "line one\nline two"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: Room reserved\r\n")
	assert.Contains(t, string(gotMsg), "line one\r\nline two")

	err = sender.Send(context.Background(), "ana@example.com\r\nBcc: x@example.com", "s", "b")
	assert.Error(t, err)
}

func TestNewSelectsTransport(t *testing.T) {
	sender, err := New(config.MailConfig{Transport: "log"}, nil, discard)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)

	_, err = New(config.MailConfig{Transport: "queue"}, nil, discard)
	assert.Error(t, err)

	sender, err = New(config.MailConfig{Transport: "queue", QueueChannel: "mail"}, &loopback{}, discard)
	require.NoError(t, err)
	assert.IsType(t, &QueueSender{}, sender)

	_, err = New(config.MailConfig{Transport: "pigeon"}, nil, discard)
	assert.Error(t, err)
}
