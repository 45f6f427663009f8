// Package events implements the per-session publish/subscribe surface that
// multiplexes model streaming events to joined subscribers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/davidbz/modelarena/internal/observability"
)

// Event is one named payload delivered to a session's subscribers.
type Event struct {
	Name      string         `json:"event"`
	SessionID string         `json:"sessionId,omitempty"`
	Payload   map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Subscriber receives events published to a session topic it has joined.
type Subscriber interface {
	// ID identifies the subscriber within a session.
	ID() string

	// Notify delivers one event. Returning an error drops the subscriber
	// from the session; it never blocks or cancels the publisher.
	Notify(event Event) error
}

// Hub multiplexes session-scoped events to joined subscribers.
//
// Delivery is best-effort and at-most-once: subscribers joining after an
// event was published never receive it, and a subscriber that stops
// accepting events is silently removed without affecting the work that
// produced them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[string]Subscriber),
	}
}

// Join subscribes sub to a session topic.
func (h *Hub) Join(sessionID string, sub Subscriber) {
	if sessionID == "" || sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.sessions[sessionID]
	if !ok {
		subs = make(map[string]Subscriber)
		h.sessions[sessionID] = subs
	}
	subs[sub.ID()] = sub
}

// Leave removes a subscriber from a session topic. Leaving never cancels
// in-flight model streams; it only stops event delivery.
func (h *Hub) Leave(sessionID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(h.sessions, sessionID)
	}
}

// Publish delivers a named event to every current subscriber of the session
// topic. Subscribers whose Notify fails are dropped from the session.
func (h *Hub) Publish(ctx context.Context, sessionID, event string, payload map[string]any) {
	ev := Event{
		Name:      event,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.sessions[sessionID]))
	for _, sub := range h.sessions[sessionID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Notify(ev); err != nil {
			observability.FromContext(ctx).Debug("dropping subscriber",
				observability.String("subscriber_id", sub.ID()),
				observability.String("event", event),
				observability.Error(err),
			)
			h.Leave(sessionID, sub.ID())
		}
	}
}

// SubscriberCount reports how many subscribers are joined to a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
