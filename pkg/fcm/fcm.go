package fcm

import (
	"context"
	"fmt"
	"log"

	"plan-notifier/internal/notification/domain"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// androidChannel is the notification channel the mobile client registers for
// high-priority plan notifications.
const androidChannel = "plan_high"

// Client wraps Firebase Cloud Messaging multicast delivery.
type Client struct {
	messagingClient *messaging.Client
}

// NewClient creates an FCM client from an initialized Firebase app.
func NewClient(ctx context.Context, app *firebase.App) (*Client, error) {
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Println("[FCM] Client initialized successfully")
	return &Client{messagingClient: messagingClient}, nil
}

// SendMulticast sends one composed notification to a set of device tokens in
// a single batch call and returns per-token outcomes aligned positionally
// with the input token list. A batch-level transport error is returned as an
// error; per-token failures are reported in the outcomes, never escalated.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, content domain.PushContent, data map[string]string) ([]domain.SendOutcome, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: content.Title,
			Body:  content.Body,
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{ChannelID: androidChannel},
		},
		Data: data,
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	log.Printf("[FCM] Multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)

	return mapOutcomes(tokens, response.Responses), nil
}

// mapOutcomes aligns per-token responses with the token list. The transport
// contract is one response per token in order; if the response list comes up
// short, the unanswered tail is marked transient rather than delivered, so
// those tokens are retried instead of silently counted as successes.
func mapOutcomes(tokens []string, responses []*messaging.SendResponse) []domain.SendOutcome {
	outcomes := make([]domain.SendOutcome, len(tokens))
	for i, token := range tokens {
		if i >= len(responses) {
			outcomes[i] = domain.SendOutcome{Token: token, Status: domain.SendTransient}
			continue
		}
		outcomes[i] = domain.SendOutcome{Token: token, Status: classify(responses[i])}
	}
	return outcomes
}

// classify maps a per-token send response onto the delivery taxonomy. Only
// the transport's registration-token-not-registered code marks a token as
// permanently stale; everything else is treated as transient.
func classify(resp *messaging.SendResponse) domain.SendStatus {
	switch {
	case resp.Success:
		return domain.SendSuccess
	case messaging.IsRegistrationTokenNotRegistered(resp.Error):
		return domain.SendUnregistered
	default:
		return domain.SendTransient
	}
}
