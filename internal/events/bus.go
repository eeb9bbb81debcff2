package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler processes a delivered event. Handler errors are logged and
// counted; they are never reported back to the publisher.
type Handler func(ctx context.Context, event *Event) error

// Subscription is one registered consumer of the bus.
type Subscription struct {
	ID         string
	EventTypes []EventType
	Handler    Handler
}

// BusStats tracks bus traffic counters.
type BusStats struct {
	Published   int64 `json:"published"`
	Delivered   int64 `json:"delivered"`
	Failed      int64 `json:"failed"`
	Dropped     int64 `json:"dropped"`
	Subscribers int64 `json:"subscribers"`
}

// Bus fans host integration events out to subscribers. Publishing is
// fire-and-forget: a full buffer drops the event rather than blocking
// the publisher.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	buffer        chan *Event
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup

	statsMu sync.Mutex
	stats   BusStats
}

// NewBus creates a bus and starts its delivery worker.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bus{
		subscriptions: make(map[string]*Subscription),
		buffer:        make(chan *Event, bufferSize),
		ctx:           ctx,
		cancel:        cancel,
	}

	b.wg.Add(1)
	go b.deliverLoop()

	log.Debug().Int("buffer_size", bufferSize).Msg("Event bus started")
	return b
}

// Publish queues an event for delivery.
func (b *Bus) Publish(event *Event) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	default:
	}

	select {
	case b.buffer <- event:
		b.statsMu.Lock()
		b.stats.Published++
		b.statsMu.Unlock()
		return nil
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	default:
		b.statsMu.Lock()
		b.stats.Dropped++
		b.statsMu.Unlock()
		log.Warn().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("Event dropped due to full buffer")
		return fmt.Errorf("event buffer is full")
	}
}

// Subscribe registers a handler for the given event types.
func (b *Bus) Subscribe(eventTypes []EventType, handler Handler) *Subscription {
	sub := &Subscription{
		ID:         uuid.New().String(),
		EventTypes: eventTypes,
		Handler:    handler,
	}

	b.mu.Lock()
	b.subscriptions[sub.ID] = sub
	b.mu.Unlock()

	b.statsMu.Lock()
	b.stats.Subscribers++
	b.statsMu.Unlock()

	return sub
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	_, exists := b.subscriptions[subscriptionID]
	if exists {
		delete(b.subscriptions, subscriptionID)
	}
	b.mu.Unlock()

	if !exists {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}

	b.statsMu.Lock()
	b.stats.Subscribers--
	b.statsMu.Unlock()
	return nil
}

// Close shuts the bus down and waits for the delivery worker.
func (b *Bus) Close() {
	b.cancel()
	b.wg.Wait()
}

// GetStats returns a snapshot of traffic counters.
func (b *Bus) GetStats() BusStats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}

func (b *Bus) deliverLoop() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.buffer:
			b.deliver(event)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Bus) deliver(event *Event) {
	b.mu.RLock()
	matching := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if sub.matches(event.Type) {
			matching = append(matching, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matching {
		if err := sub.Handler(b.ctx, event); err != nil {
			b.statsMu.Lock()
			b.stats.Failed++
			b.statsMu.Unlock()
			log.Error().
				Err(err).
				Str("subscription_id", sub.ID).
				Str("event_id", event.ID).
				Msg("Event handler failed")
			continue
		}
		b.statsMu.Lock()
		b.stats.Delivered++
		b.statsMu.Unlock()
	}
}

func (s *Subscription) matches(t EventType) bool {
	for _, et := range s.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}
