package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
		return nil
	}
}

func TestBusDeliversToMatchingSubscriber(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	received := make(chan *Event, 1)
	bus.Subscribe([]EventType{EventOpenDocument}, func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	})

	event := NewOpenDocumentEvent("abc", 2, "doc.pdf")
	require.NoError(t, bus.Publish(event))

	got := waitForEvent(t, received)
	assert.Equal(t, "abc", got.DocumentID)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, "doc.pdf", got.DisplayName)
	assert.Equal(t, EventOpenDocument, got.Type)
	assert.NotEmpty(t, got.ID)
}

func TestBusSkipsNonMatchingSubscriber(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	opened := make(chan *Event, 1)
	listed := make(chan *Event, 1)
	bus.Subscribe([]EventType{EventOpenDocument}, func(ctx context.Context, event *Event) error {
		opened <- event
		return nil
	})
	bus.Subscribe([]EventType{EventListDocuments}, func(ctx context.Context, event *Event) error {
		listed <- event
		return nil
	})

	require.NoError(t, bus.Publish(NewListDocumentsEvent()))

	got := waitForEvent(t, listed)
	assert.Equal(t, EventListDocuments, got.Type)

	select {
	case <-opened:
		t.Fatal("open-document subscriber must not receive list events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	received := make(chan *Event, 1)
	sub := bus.Subscribe([]EventType{EventOpenDocument}, func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	})

	require.NoError(t, bus.Unsubscribe(sub.ID))
	require.NoError(t, bus.Publish(NewOpenDocumentEvent("abc", 1, "")))

	select {
	case <-received:
		t.Fatal("unsubscribed handler must not be invoked")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Error(t, bus.Unsubscribe("missing"))
}

func TestBusCountsHandlerFailures(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	done := make(chan struct{}, 1)
	bus.Subscribe([]EventType{EventOpenDocument}, func(ctx context.Context, event *Event) error {
		defer func() { done <- struct{}{} }()
		return errors.New("handler failed")
	})

	require.NoError(t, bus.Publish(NewOpenDocumentEvent("abc", 1, "")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}

	// Delivery accounting is updated after the handler returns.
	assert.Eventually(t, func() bool {
		return bus.GetStats().Failed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(1)
	bus.Close()

	err := bus.Publish(NewOpenDocumentEvent("abc", 1, ""))
	assert.Error(t, err)
}

func TestBusStats(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	received := make(chan *Event, 2)
	bus.Subscribe([]EventType{EventOpenDocument, EventListDocuments}, func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	})

	require.NoError(t, bus.Publish(NewOpenDocumentEvent("abc", 1, "")))
	require.NoError(t, bus.Publish(NewListDocumentsEvent()))
	waitForEvent(t, received)
	waitForEvent(t, received)

	assert.Eventually(t, func() bool {
		stats := bus.GetStats()
		return stats.Published == 2 && stats.Delivered == 2 && stats.Subscribers == 1
	}, time.Second, 10*time.Millisecond)
}
