package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(Message{Kind: KindJobCreated, Payload: "job-1"})

	select {
	case msg := <-sub.C:
		require.Equal(t, KindJobCreated, msg.Kind)
		require.Equal(t, "job-1", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	var dropped int
	b.OnDrop(func(Kind) { dropped++ })

	for i := 0; i < subscriberBufferSize+5; i++ {
		b.Publish(Message{Kind: KindJobUpdated})
	}
	require.Greater(t, dropped, 0)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	require.NotPanics(t, func() { b.Unsubscribe(sub) })
}

func TestSubscriberCount(t *testing.T) {
	b := NewBus()
	require.Equal(t, 0, b.SubscriberCount())
	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())
}
