package events

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"gocloud.dev/pubsub"
)

// Handler reacts to a received event.
type Handler func(ctx context.Context, event *Event) error

// Subscriber pulls events from a subscription URL. For mem:// URLs the topic
// must already be open in this process.
type Subscriber struct {
	url string

	mu           sync.Mutex
	subscription *pubsub.Subscription
}

// NewSubscriber prepares a subscriber. Call Init before Receive.
func NewSubscriber(url string) *Subscriber {
	return &Subscriber{url: url}
}

// Init opens the subscription. It is safe to call more than once.
func (s *Subscriber) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscription != nil {
		return nil
	}
	if strings.TrimSpace(s.url) == "" {
		return errors.New("events subscription URL cannot be empty")
	}

	sub, err := pubsub.OpenSubscription(ctx, s.url)
	if err != nil {
		return err
	}
	s.subscription = sub
	return nil
}

// Receive blocks for the next event. Messages are acknowledged once decoded;
// undecodable messages are acknowledged and skipped.
func (s *Subscriber) Receive(ctx context.Context) (context.Context, *Event, error) {
	s.mu.Lock()
	sub := s.subscription
	s.mu.Unlock()
	if sub == nil {
		return ctx, nil, errors.New("only initialised subscriptions can pull messages")
	}

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return ctx, nil, err
		}
		msg.Ack()

		event, err := unmarshal(msg.Body)
		if err != nil {
			util.Log(ctx).WithError(err).Warn("dropping undecodable event")
			continue
		}

		mctx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
		return mctx, event, nil
	}
}

// Listen delivers events to handler until ctx is done. Handler errors are
// logged and do not stop the loop.
func (s *Subscriber) Listen(ctx context.Context, handler Handler) error {
	for {
		mctx, event, err := s.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if hErr := handler(mctx, event); hErr != nil {
			util.Log(ctx).WithError(hErr).WithField("kind", event.Kind).Error("event handler failed")
		}
	}
}

// Stop closes the subscription.
func (s *Subscriber) Stop(ctx context.Context) error {
	s.mu.Lock()
	sub := s.subscription
	s.subscription = nil
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Shutdown(ctx)
}
