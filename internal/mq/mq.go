package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roomdesk/apiserver/config"
)

const (
	// ContentTypeAttribute is mapped onto the broker's native content type
	// where one exists.
	ContentTypeAttribute = "content-type"
	// AttemptAttribute counts deliveries on backends that redeliver by
	// republishing.
	AttemptAttribute = "x-attempt"

	defaultMaxDeliveries = 5
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack, or
// wrap it with Permanent to dead-letter the message without retrying.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Open connects to the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "rabbitmq":
		return NewRabbitMQBackend(cfg)
	case "pubsub":
		return NewPubSubBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
}

// ErrPermanent marks handler failures that redelivery cannot fix.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent wraps err so the backend dead-letters the message immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// settle decides what happens to a message after its handler ran for the
// attempt-th time.
func settle(err error, attempt, maxDeliveries int) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case isPermanent(err):
		return outcomeDeadLetter
	case maxDeliveries > 0 && attempt >= maxDeliveries:
		return outcomeDeadLetter
	default:
		return outcomeRetry
	}
}

func attemptOf(attrs map[string]string) int {
	attempt, err := strconv.Atoi(attrs[AttemptAttribute])
	if err != nil || attempt < 1 {
		return 1
	}
	return attempt
}

func maxDeliveries(cfg config.MQConfig) int {
	if cfg.MaxDeliveries <= 0 {
		return defaultMaxDeliveries
	}
	return cfg.MaxDeliveries
}
