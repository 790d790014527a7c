package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/roomdesk/apiserver/config"
	"google.golang.org/api/option"
)

// Pub/Sub only accepts dead-letter policies within these bounds.
const (
	minPubSubDeliveries = 5
	maxPubSubDeliveries = 100
)

// PubSubBackend maps channels to Pub/Sub topics, each consumed through a
// single subscription named channel+suffix. When a dead-letter suffix is
// configured, subscriptions are created with a dead-letter policy so the
// delivery attempt is tracked by the service.
type PubSubBackend struct {
	client             *pubsub.Client
	subscriptionSuffix string
	deadSuffix         string
	maxDeliveries      int

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubBackend constructs a Pub/Sub backend from config.
func NewPubSubBackend(ctx context.Context, cfg config.MQConfig) (*PubSubBackend, error) {
	pc := cfg.PubSub
	if strings.TrimSpace(pc.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(pc.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(pc.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, pc.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	suffix := pc.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}

	return &PubSubBackend{
		client:             client,
		subscriptionSuffix: suffix,
		deadSuffix:         strings.TrimSpace(cfg.DeadLetterSuffix),
		maxDeliveries:      max(minPubSubDeliveries, min(maxDeliveries(cfg), maxPubSubDeliveries)),
		topics:             make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends a message to the named topic and waits for the server id.
func (p *PubSubBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// Subscribe receives messages from the named channel until ctx is done.
func (p *PubSubBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}
	var dead *pubsub.Topic
	if p.deadSuffix != "" {
		if dead, err = p.topic(ctx, channel+p.deadSuffix); err != nil {
			return err
		}
	}
	sub, err := p.subscription(ctx, channel+p.subscriptionSuffix, topic, dead)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		attempt := 1
		if msg.DeliveryAttempt != nil {
			attempt = *msg.DeliveryAttempt
		}

		err := handler(ctx, Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
		})
		switch settle(err, attempt, p.maxDeliveries) {
		case outcomeAck:
			msg.Ack()
		case outcomeRetry:
			msg.Nack()
		case outcomeDeadLetter:
			if dead != nil {
				forward := &pubsub.Message{Data: msg.Data, Attributes: msg.Attributes}
				if _, err := dead.Publish(ctx, forward).Get(ctx); err != nil {
					msg.Nack()
					return
				}
			}
			msg.Ack()
		}
	})
}

// Close flushes pending publishes and closes the client.
func (p *PubSubBackend) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubBackend) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", name, err)
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", name, err)
		}
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubBackend) subscription(ctx context.Context, name string, topic, dead *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription %s: %w", name, err)
	}
	if exists {
		return sub, nil
	}

	cfg := pubsub.SubscriptionConfig{Topic: topic}
	if dead != nil {
		cfg.DeadLetterPolicy = &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     dead.String(),
			MaxDeliveryAttempts: p.maxDeliveries,
		}
	}
	sub, err = p.client.CreateSubscription(ctx, name, cfg)
	if err != nil {
		return nil, fmt.Errorf("create subscription %s: %w", name, err)
	}
	return sub, nil
}
