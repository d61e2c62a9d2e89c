package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // registers the mem:// driver

	"github.com/pitabwire/barberdesk/localization"
)

// ErrNotInitialized is returned when publishing before Init or after Stop.
var ErrNotInitialized = errors.New("events publisher is not initialized")

const defaultShutdownTimeout = 30 * time.Second

// Publisher sends events to a pubsub topic. A nil *Publisher drops everything,
// which lets components publish unconditionally.
type Publisher struct {
	url string

	mu    sync.RWMutex
	topic *pubsub.Topic
}

// NewPublisher prepares a publisher for the topic URL. Call Init before Publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// URL returns the topic the publisher writes to.
func (p *Publisher) URL() string {
	if p == nil {
		return ""
	}
	return p.url
}

// Init opens the topic. It is safe to call more than once.
func (p *Publisher) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.topic != nil {
		return nil
	}
	if strings.TrimSpace(p.url) == "" {
		return errors.New("events topic URL cannot be empty")
	}

	topic, err := pubsub.OpenTopic(ctx, p.url)
	if err != nil {
		return err
	}
	p.topic = topic
	return nil
}

// Initiated reports whether the topic is open.
func (p *Publisher) Initiated() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.topic != nil
}

// Publish sends the event with trace propagation and language metadata.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil {
		return nil
	}

	p.mu.RLock()
	topic := p.topic
	p.mu.RUnlock()
	if topic == nil {
		return ErrNotInitialized
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	body, err := event.marshal()
	if err != nil {
		return err
	}

	metadata := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, metadata)
	metadata[metadataKind] = string(event.Kind)
	if lang := localization.FromContext(ctx); lang != "" {
		metadata[localization.MetadataKey] = lang
	}

	return topic.Send(ctx, &pubsub.Message{
		Body:     body,
		Metadata: metadata,
	})
}

// Emit publishes and logs failures instead of returning them. Notifications are
// best effort and must never fail the operation that triggered them.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		util.Log(ctx).WithError(err).WithField("kind", event.Kind).Warn("could not publish event")
	}
}

// Stop closes the topic.
func (p *Publisher) Stop(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	topic := p.topic
	p.topic = nil
	p.mu.Unlock()

	if topic == nil {
		return nil
	}

	// mem:// topics are shared by URL within the process; shutting one down
	// breaks every other user of the same URL.
	if strings.HasPrefix(strings.ToLower(p.url), "mem://") {
		return nil
	}

	sctx := ctx
	if ctx.Err() != nil {
		sctx = context.Background()
	}
	sctx, cancel := context.WithTimeout(sctx, defaultShutdownTimeout)
	defer cancel()

	err := topic.Shutdown(sctx)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "topic has been shutdown") {
		return nil
	}
	return err
}
