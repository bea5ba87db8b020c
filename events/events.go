// Package events implements the process-wide event bus (C9): a pub/sub
// broadcaster with per-subscriber buffered channels and non-blocking drop
// on slow consumers. Grounded on
// Livepeer-FrameWorks-monorepo/api_realtime/internal/websocket/hub.go's
// broadcast-hub pattern (register/unregister channel + buffered send with
// default-drop), adapted into a typed Message sum type.
package events

import (
	"sync"
)

// Kind enumerates the eight message kinds in spec.md §4.9.
type Kind string

const (
	KindCatalogSnapshot Kind = "catalog_snapshot"
	KindJobCreated      Kind = "job_created"
	KindJobUpdated      Kind = "job_updated"
	KindJobError        Kind = "job_error"
	KindCaptureComplete Kind = "capture_complete"
	KindClipComplete    Kind = "clip_complete"
	KindPreviewComplete Kind = "preview_complete"
	KindUploadComplete  Kind = "upload_complete"
)

// Message is the envelope delivered to every subscriber. Payload carries the
// kind-specific body (a catalog.Snapshot, a jobs.Job, etc.) as an any value
// at the boundary of this package only — handlers on the HTTP/WS side know
// the concrete type for each Kind.
type Message struct {
	Kind    Kind
	Payload any
}

const subscriberBufferSize = 32

// Subscription is a live subscriber's receive channel plus the handle
// needed to unsubscribe.
type Subscription struct {
	C  <-chan Message
	id int
	c  chan Message
}

// Bus is a process-wide pub/sub broadcaster. No persistent queue: a late
// subscriber sees only future events (the catalog snapshot it needs on
// connect is sent once explicitly by httpapi's serveWS, not replayed here).
type Bus struct {
	mu       sync.Mutex
	nextID   int
	subs     map[int]chan Message
	onDrop   func(kind Kind)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Message)}
}

// OnDrop registers a callback invoked whenever a message is dropped because
// a subscriber's buffer was full (wired to metrics.EventsDropped).
func (b *Bus) OnDrop(f func(kind Kind)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = f
}

// Subscribe registers a new subscriber and returns its Subscription. Callers
// must call Unsubscribe when done, typically via defer.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	c := make(chan Message, subscriberBufferSize)
	b.subs[id] = c
	return &Subscription{C: c, id: id, c: c}
}

// Unsubscribe removes a subscriber. Safe to call once; further calls are
// no-ops.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.c)
}

// Publish delivers msg to every current subscriber at-most-once. Delivery
// to each subscriber is in-order (the per-subscriber channel is the only
// ordering primitive); a subscriber whose buffer is full has this message
// dropped rather than blocking the publisher.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	subs := make([]chan Message, 0, len(b.subs))
	for _, c := range b.subs {
		subs = append(subs, c)
	}
	onDrop := b.onDrop
	b.mu.Unlock()

	for _, c := range subs {
		select {
		case c <- msg:
		default:
			if onDrop != nil {
				onDrop(msg.Kind)
			}
		}
	}
}

// SubscriberCount reports the number of currently connected subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
