package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Observer is a live connection that receives every broadcast event.
// A Send error means the connection is dead; the hub prunes it.
type Observer interface {
	Send(ev Event) error
	Close() error
}

// Sink receives a best-effort copy of world events (announcement
// platforms like Discord or Slack). Sinks are never pruned.
type Sink interface {
	Announce(ctx context.Context, ev Event)
}

// Hub fans events out to all connected observers and attached sinks.
// Delivery is best-effort: no ordering guarantee across observers,
// no retry, failed recipients are dropped.
type Hub struct {
	observers map[Observer]struct{}
	sinks     []Sink
	handler   InboundHandler
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewHub creates an empty observer hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		observers: make(map[Observer]struct{}),
		logger:    logger,
	}
}

// SetHandler sets the callback for inbound observer messages.
func (h *Hub) SetHandler(fn InboundHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = fn
}

// Dispatch routes an inbound observer message to the registered handler.
func (h *Hub) Dispatch(msg *Inbound) {
	h.mu.RLock()
	fn := h.handler
	h.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

// Register adds an observer connection.
func (h *Hub) Register(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers[o] = struct{}{}
	h.logger.Debug("observer connected", zap.Int("observers", len(h.observers)))
}

// Unregister removes an observer without closing it (the caller owns
// the connection teardown, e.g. on client disconnect).
func (h *Hub) Unregister(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, o)
}

// Attach adds an announcement sink.
func (h *Hub) Attach(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, s)
}

// Broadcast sends the event to every observer, pruning any that fail,
// then forwards it to the sinks. Never returns an error: delivery
// failure is the recipient's problem, not the sender's.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		targets = append(targets, o)
	}
	sinks := h.sinks
	h.mu.RUnlock()

	for _, o := range targets {
		if err := o.Send(ev); err != nil {
			h.logger.Debug("pruning dead observer", zap.Error(err))
			h.mu.Lock()
			delete(h.observers, o)
			h.mu.Unlock()
			o.Close()
		}
	}

	ctx := context.Background()
	for _, s := range sinks {
		s.Announce(ctx, ev)
	}
}

// Count returns the number of live observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Close disconnects all observers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for o := range h.observers {
		o.Close()
	}
	h.observers = make(map[Observer]struct{})
}
