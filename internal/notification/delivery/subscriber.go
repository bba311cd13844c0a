package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"plan-notifier/internal/notification/domain"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// EventRouter routes one decoded store-change event.
type EventRouter interface {
	Route(ctx context.Context, ev domain.Event) error
}

// Subscriber pulls store-change events from a Pub/Sub subscription and feeds
// them to the router. Handler failures are Nacked so the broker redelivers —
// that redelivery is the retry mechanism for transient failures.
type Subscriber struct {
	client    *pubsub.Client
	router    EventRouter
	topicName string
	subName   string
}

// NewSubscriber creates the Pub/Sub client and subscriber.
func NewSubscriber(ctx context.Context, projectID, topicName, subName string, router EventRouter, credentialsFile string) (*Subscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Subscriber{
		client:    client,
		router:    router,
		topicName: topicName,
		subName:   subName,
	}, nil
}

// Start ensures the subscription exists and blocks receiving messages until
// ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	log.Printf("[PubSub] Starting event subscriber on topic %s, subscription %s", s.topicName, s.subName)

	sub := s.client.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", s.subName, err)
	}

	if !exists {
		topic := s.client.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic %s: %w", s.topicName, err)
		}
		if !topicExists {
			return fmt.Errorf("topic %s does not exist", s.topicName)
		}

		sub, err = s.client.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("create subscription %s: %w", s.subName, err)
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
	})
}

func (s *Subscriber) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var ev domain.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		// Poison message: acking avoids an endless redelivery loop.
		log.Printf("[PubSub] Dropping undecodable event: %v", err)
		msg.Ack()
		return
	}

	if err := s.router.Route(ctx, ev); err != nil {
		log.Printf("[PubSub] Event %s failed, nacking for redelivery: %v", ev.Kind, err)
		msg.Nack()
		return
	}
	msg.Ack()
}

// Close releases the Pub/Sub client.
func (s *Subscriber) Close() error {
	return s.client.Close()
}
