// Package events carries cross-component notifications, such as "the records
// of a chantier changed" or "the stock list must be refreshed", over Redis
// pub/sub. Components subscribe to a topic instead of calling each other.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Topic names a stream of events.
type Topic string

const (
	// TopicRecordsChanged is published after situations or invoices are written.
	TopicRecordsChanged Topic = "facturation.records_changed"
	// TopicStockRefresh asks stock views to reload.
	TopicStockRefresh Topic = "stock.refresh"
)

const channelPrefix = "chantier:events:"

// ErrNoTopic is returned when publishing or subscribing without a topic.
var ErrNoTopic = errors.New("events: topic required")

// Event is the payload published on the bus.
type Event struct {
	Topic      Topic     `json:"topic"`
	ChantierID int64     `json:"chantier_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	At         time.Time `json:"at"`
}

// Handler consumes one event. Errors are logged, never retried.
type Handler func(ctx context.Context, ev Event) error

// Observer is notified of every published event.
type Observer interface {
	EventPublished(topic string)
}

// Bus publishes and dispatches events. Without a Redis client it dispatches
// synchronously to the subscribers of the same process.
type Bus struct {
	client   redis.UniversalClient
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	mu     sync.RWMutex
	nextID uint64
	local  map[Topic][]localHandler
}

type localHandler struct {
	id uint64
	h  Handler
}

// NewBus builds a bus. client, logger and observer may be nil.
func NewBus(client redis.UniversalClient, logger *slog.Logger, observer Observer) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		client:   client,
		logger:   logger,
		observer: observer,
		now:      time.Now,
		local:    make(map[Topic][]localHandler),
	}
}

func channel(topic Topic) string {
	return channelPrefix + string(topic)
}

// Publish sends ev to every subscriber of ev.Topic. A zero At is stamped.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.Topic == "" {
		return ErrNoTopic
	}
	if ev.At.IsZero() {
		ev.At = b.now().UTC()
	}
	if b.observer != nil {
		b.observer.EventPublished(string(ev.Topic))
	}

	if b.client == nil {
		b.dispatchLocal(ctx, ev)
		return nil
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	if err := b.client.Publish(ctx, channel(ev.Topic), raw).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.Topic, err)
	}
	return nil
}

func (b *Bus) dispatchLocal(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := append([]localHandler(nil), b.local[ev.Topic]...)
	b.mu.RUnlock()
	for _, lh := range handlers {
		b.handle(ctx, lh.h, ev)
	}
}

func (b *Bus) handle(ctx context.Context, h Handler, ev Event) {
	if err := h(ctx, ev); err != nil {
		b.logger.Error("event handler failed", slog.String("topic", string(ev.Topic)), slog.Any("error", err))
	}
}

// Subscription is an active subscription. Close stops delivery.
type Subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
	cancel func()
}

// Done is closed once the subscription stops delivering events.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes and waits for the delivery loop to exit.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.pubsub == nil {
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
		err = s.pubsub.Close()
		<-s.done
	})
	return err
}

// Subscribe delivers events for topics to handler until ctx is done or the
// subscription is closed. It returns once Redis has confirmed the subscription.
func (b *Bus) Subscribe(ctx context.Context, handler Handler, topics ...Topic) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, ErrNoTopic
	}
	if b.client == nil {
		return b.subscribeLocal(ctx, handler, topics), nil
	}

	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = channel(t)
	}
	pubsub := b.client.Subscribe(ctx, channels...)
	for range channels {
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("events: subscribe %s: %w", strings.Join(channels, ","), err)
		}
	}

	sub := &Subscription{pubsub: pubsub, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("discarding malformed event", slog.String("channel", msg.Channel), slog.Any("error", err))
					continue
				}
				b.handle(ctx, handler, ev)
			}
		}
	}()
	return sub, nil
}

func (b *Bus) subscribeLocal(ctx context.Context, handler Handler, topics []Topic) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range topics {
		b.local[t] = append(b.local[t], localHandler{id: id, h: handler})
	}
	b.mu.Unlock()

	sub := &Subscription{done: make(chan struct{})}
	sub.cancel = func() {
		b.mu.Lock()
		for _, t := range topics {
			b.local[t] = slices.DeleteFunc(b.local[t], func(lh localHandler) bool { return lh.id == id })
		}
		b.mu.Unlock()
		close(sub.done)
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}
