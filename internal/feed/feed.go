// Package feed fans out change notifications to live views.
//
// A Hub replaces database live queries: producers Publish events, each
// view holds a Subscription and re-reads what it needs when notified.
package feed

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"sensor-dashboard/internal/storage"
)

type Topic string

const (
	// A sensor row changed.
	TopicSensors Topic = "sensors"
	// A history entry was created.
	TopicHistory Topic = "history"
)

type Event struct {
	Topic Topic
	MAC   string
	// Set for TopicHistory.
	Entry *storage.HistoryEntry
}

// DropFunc is called for every event dropped on a full subscriber buffer.
type DropFunc func(topic Topic)

type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	onDrop DropFunc

	dropped atomic.Uint64
	logger  *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		logger: slog.With("component", "feed"),
	}
}

// OnDrop registers a callback for dropped events. Must be set before use.
func (h *Hub) OnDrop(fn DropFunc) {
	h.onDrop = fn
}

type Subscription struct {
	C <-chan Event

	ch     chan Event
	topics map[Topic]bool
	hub    *Hub
	once   sync.Once
}

// Subscribe returns a subscription receiving events of the given topics, or
// all topics when none are named.
func (h *Hub) Subscribe(buffer int, topics ...Topic) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Subscribed", "topics", topics, "subscribers", h.Subscribers())
	return sub
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

func (s *Subscription) wants(t Topic) bool {
	return s.topics == nil || s.topics[t]
}

// Publish delivers ev to every interested subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !sub.wants(ev.Topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
			h.logger.Warn("Dropped event for slow subscriber", "topic", ev.Topic, "mac", ev.MAC)
			if h.onDrop != nil {
				h.onDrop(ev.Topic)
			}
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the number of events dropped so far.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
