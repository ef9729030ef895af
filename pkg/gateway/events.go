// Copyright 2025 Witness Protocol
//
// Attestation Event Hub
// In-process broadcast of attestation events to live subscribers. Fan-out
// is best-effort: a subscriber more than EventBuffer events behind has
// frames dropped instead of back-pressuring the pipeline. A missing
// subscriber is never an error.

package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// EventBuffer is the per-subscriber channel capacity.
const EventBuffer = 256

// AttestationEvent is broadcast when an attestation is created.
type AttestationEvent struct {
	Type      string `json:"type"`
	Hash      string `json:"hash"`
	Timestamp uint64 `json:"timestamp"`
}

// EventHub fans events out to subscribers.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan AttestationEvent
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[uuid.UUID]chan AttestationEvent),
	}
}

// Subscribe registers a new subscriber and returns its channel and an
// unsubscribe function.
func (h *EventHub) Subscribe() (<-chan AttestationEvent, func()) {
	id := uuid.New()
	ch := make(chan AttestationEvent, EventBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if existing, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(existing)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (h *EventHub) Publish(event AttestationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is behind; drop rather than block.
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *EventHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
