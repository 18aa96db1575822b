// Package notify defines the push-notification boundary. The core emits
// fire-and-forget events keyed by a device token; delivery failures are
// logged by callers and never propagated as request failures.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teamtrack/apiserver/internal/mq"
)

// Event kinds emitted by the core.
const (
	EventWelcome         = "welcome"
	EventAccountApproved = "accountApproved"
	EventAccountRejected = "accountRejected"
)

// Event is the payload published for downstream push senders.
type Event struct {
	Kind        string    `json:"kind"`
	DeviceToken string    `json:"device_token"`
	Name        string    `json:"name"`
	SentAt      time.Time `json:"sent_at"`
}

// Notifier is the capability handed to services. It is injected at process
// start rather than reached through package-level state.
type Notifier interface {
	Welcome(ctx context.Context, deviceToken, name string) error
	AccountApproved(ctx context.Context, deviceToken, name string) error
	AccountRejected(ctx context.Context, deviceToken, name string) error
}

// Publisher sends notification events over the message broker.
type Publisher struct {
	mq      *mq.MQ
	channel string
}

// NewPublisher constructs a broker-backed Notifier publishing on channel.
func NewPublisher(broker *mq.MQ, channel string) *Publisher {
	return &Publisher{mq: broker, channel: channel}
}

func (p *Publisher) Welcome(ctx context.Context, deviceToken, name string) error {
	return p.publish(ctx, EventWelcome, deviceToken, name)
}

func (p *Publisher) AccountApproved(ctx context.Context, deviceToken, name string) error {
	return p.publish(ctx, EventAccountApproved, deviceToken, name)
}

func (p *Publisher) AccountRejected(ctx context.Context, deviceToken, name string) error {
	return p.publish(ctx, EventAccountRejected, deviceToken, name)
}

func (p *Publisher) publish(ctx context.Context, kind, deviceToken, name string) error {
	if deviceToken == "" {
		// Nothing to deliver to; not an error.
		return nil
	}

	event := Event{
		Kind:        kind,
		DeviceToken: deviceToken,
		Name:        name,
		SentAt:      time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{"kind": kind})
	return err
}

// Nop is a Notifier that drops every event. Used when no broker is
// configured and in tests.
type Nop struct{}

func (Nop) Welcome(context.Context, string, string) error         { return nil }
func (Nop) AccountApproved(context.Context, string, string) error { return nil }
func (Nop) AccountRejected(context.Context, string, string) error { return nil }
