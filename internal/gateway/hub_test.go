package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeObserver struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (o *fakeObserver) Send(ev Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return errors.New("broken pipe")
	}
	o.events = append(o.events, ev)
	return nil
}

func (o *fakeObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

type fakeSink struct {
	events []Event
}

func (s *fakeSink) Announce(ctx context.Context, ev Event) {
	s.events = append(s.events, ev)
}

func TestBroadcastReachesAllObservers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a, b := &fakeObserver{}, &fakeObserver{}
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast(Event{Type: EventStateUpdate})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("deliveries: a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestBroadcastPrunesDeadObservers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	alive, dead := &fakeObserver{}, &fakeObserver{fail: true}
	hub.Register(alive)
	hub.Register(dead)

	hub.Broadcast(Event{Type: EventChatMessage})

	if hub.Count() != 1 {
		t.Fatalf("observers = %d, want 1 after prune", hub.Count())
	}
	if !dead.closed {
		t.Fatalf("dead observer not closed")
	}
	if len(alive.events) != 1 {
		t.Fatalf("surviving observer missed the event")
	}

	// The pruned observer stays gone.
	hub.Broadcast(Event{Type: EventChatMessage})
	if len(alive.events) != 2 {
		t.Fatalf("second delivery = %d events", len(alive.events))
	}
}

func TestBroadcastForwardsToSinks(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sink := &fakeSink{}
	hub.Attach(sink)

	hub.Broadcast(Event{Type: EventAgentAction})
	if len(sink.events) != 1 {
		t.Fatalf("sink deliveries = %d, want 1", len(sink.events))
	}
}

func TestDispatchRoutesToHandler(t *testing.T) {
	hub := NewHub(zap.NewNop())
	var got *Inbound
	hub.SetHandler(func(msg *Inbound) { got = msg })

	payload, _ := json.Marshal(AskPayload{AgentID: "a1", Prompt: "hi"})
	hub.Dispatch(&Inbound{Type: InboundAskLLM, Payload: payload})

	if got == nil || got.Type != InboundAskLLM {
		t.Fatalf("handler got %+v", got)
	}
}

func TestDispatchWithoutHandlerIsNoop(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Dispatch(&Inbound{Type: InboundUserMessage})
}

func TestUnregisterLeavesConnectionOpen(t *testing.T) {
	hub := NewHub(zap.NewNop())
	o := &fakeObserver{}
	hub.Register(o)
	hub.Unregister(o)

	if hub.Count() != 0 {
		t.Fatalf("observers = %d", hub.Count())
	}
	if o.closed {
		t.Fatalf("unregister closed the connection")
	}
}
