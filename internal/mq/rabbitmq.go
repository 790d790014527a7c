package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/roomdesk/apiserver/config"
)

// RabbitMQBackend publishes to and consumes from RabbitMQ queues named after
// the channel. Publishes wait for broker confirmation. Failed deliveries are
// republished with an incremented AttemptAttribute until the budget runs out,
// then routed to the queue's dead-letter queue.
type RabbitMQBackend struct {
	conn          *amqp.Connection
	channel       *amqp.Channel
	durable       bool
	autoDelete    bool
	maxDeliveries int
	deadSuffix    string

	mu       sync.Mutex
	declared map[string]bool
}

// NewRabbitMQBackend dials RabbitMQ, opens a channel and puts it in confirm mode.
func NewRabbitMQBackend(cfg config.MQConfig) (*RabbitMQBackend, error) {
	rc := cfg.RabbitMQ
	if strings.TrimSpace(rc.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(rc.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if rc.PrefetchCount > 0 {
		if err := ch.Qos(rc.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("set rabbitmq prefetch: %w", err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &RabbitMQBackend{
		conn:          conn,
		channel:       ch,
		durable:       rc.QueueDurable,
		autoDelete:    rc.QueueAutoDelete,
		maxDeliveries: maxDeliveries(cfg),
		deadSuffix:    strings.TrimSpace(cfg.DeadLetterSuffix),
		declared:      make(map[string]bool),
	}, nil
}

// Publish sends a message to the named queue and waits for the broker to
// take responsibility for it.
func (r *RabbitMQBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.ensureQueue(channel); err != nil {
		return "", err
	}
	return r.publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named queue until ctx is done.
func (r *RabbitMQBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.ensureQueue(channel); err != nil {
		return err
	}

	consumerTag := "roomdesk-" + uuid.NewString()
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", channel, err)
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			r.handle(ctx, channel, delivery, handler)
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQBackend) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQBackend) handle(ctx context.Context, queue string, delivery amqp.Delivery, handler Handler) {
	attrs := headersToAttributes(delivery.Headers)
	attempt := attemptOf(attrs)

	err := handler(ctx, Message{
		ID:         delivery.MessageId,
		Data:       delivery.Body,
		Attributes: attrs,
	})
	switch settle(err, attempt, r.maxDeliveries) {
	case outcomeAck:
		_ = delivery.Ack(false)
	case outcomeDeadLetter:
		// Without a dead-letter queue the broker discards the message.
		_ = delivery.Nack(false, false)
	case outcomeRetry:
		retry := make(map[string]string, len(attrs)+2)
		for key, value := range attrs {
			retry[key] = value
		}
		retry[AttemptAttribute] = strconv.Itoa(attempt + 1)
		if delivery.ContentType != "" {
			retry[ContentTypeAttribute] = delivery.ContentType
		}
		if _, err := r.publish(ctx, queue, delivery.Body, retry); err != nil {
			_ = delivery.Nack(false, true)
			return
		}
		_ = delivery.Ack(false)
	}
}

func (r *RabbitMQBackend) publish(ctx context.Context, queue string, data []byte, attrs map[string]string) (string, error) {
	msg := amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Headers:      amqp.Table{},
		Body:         data,
	}
	if r.durable {
		msg.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		if key == ContentTypeAttribute {
			msg.ContentType = value
			continue
		}
		msg.Headers[key] = value
	}

	confirmation, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", queue, err)
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return "", fmt.Errorf("confirm publish to %s: %w", queue, err)
	}
	if !acked {
		return "", fmt.Errorf("rabbitmq refused message for %s", queue)
	}
	return msg.MessageId, nil
}

// ensureQueue declares name, and its dead-letter queue when one is
// configured, once per backend.
func (r *RabbitMQBackend) ensureQueue(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[name] {
		return nil
	}

	var args amqp.Table
	if r.deadSuffix != "" {
		dead := name + r.deadSuffix
		if _, err := r.channel.QueueDeclare(dead, r.durable, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", dead, err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dead,
		}
	}
	if _, err := r.channel.QueueDeclare(name, r.durable, r.autoDelete, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
