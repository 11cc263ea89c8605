/*
Package chat contains the core logic of the direct-messaging subsystem.

This file defines the Hub, the in-process stand-in for the backing store's
insert-event feed. Subscriptions are scoped to a receiver id: a subscriber only
ever observes messages addressed to them, which is why a sender never sees
their own messages through the feed and must rely on the optimistic append in
the send path.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"mindease/internal/pkg/logx"
)

// subscriptionBuffer sizes the per-subscriber event queue. A consumer that
// falls this far behind loses events and recovers via a cold reload.
const subscriptionBuffer = 256

// Subscription is a receiver-scoped stream of message-insert events.
// Delivery is at-least-once from the consumer's point of view; consumers must
// fold events idempotently.
type Subscription struct {
	receiverID string
	events     chan Message
	once       sync.Once
}

// Events returns the channel live events arrive on. The channel is closed
// when the subscription is torn down or replaced by a newer one for the same
// receiver.
func (s *Subscription) Events() <-chan Message {
	return s.events
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub fans message-insert events out to receiver-scoped subscriptions.
// At most one subscription per receiver is active at a time: subscribing again
// closes the previous channel, so a reconnecting client never leaks one.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
	logger zerolog.Logger
}

// NewHub constructs a Hub ready for subscriptions.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]*Subscription),
		logger: logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// Subscribe registers the single live subscription for the given receiver.
// An existing subscription for the same receiver is closed and replaced.
func (h *Hub) Subscribe(receiverID string) *Subscription {
	sub := &Subscription{
		receiverID: receiverID,
		events:     make(chan Message, subscriptionBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.close()
		return sub
	}

	if old, ok := h.subs[receiverID]; ok {
		h.logger.Info().Str("receiver_id", receiverID).Msg("Replacing existing subscription for receiver.")
		old.close()
	}
	h.subs[receiverID] = sub

	return sub
}

// Unsubscribe tears down the subscription if it is still the live one for its
// receiver. Stale subscriptions (already replaced) are only closed.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.subs[sub.receiverID]; ok && current == sub {
		delete(h.subs, sub.receiverID)
	}
	sub.close()
}

// Publish delivers an insert event to the subscription scoped to the
// message's receiver, if any. The send never blocks: a full subscriber queue
// drops the event and the consumer converges again on its next reload.
func (h *Hub) Publish(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sub, ok := h.subs[m.ReceiverID]
	if !ok {
		return
	}

	select {
	case sub.events <- m:
	default:
		h.logger.Warn().
			Str("receiver_id", m.ReceiverID).
			Str("message_id", m.ID).
			Msg("Subscriber queue full, dropping live event.")
	}
}

// Shutdown closes every live subscription and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		sub.close()
	}
	h.subs = make(map[string]*Subscription)
	h.closed = true

	h.logger.Info().Msg("Hub shutdown complete.")
}
