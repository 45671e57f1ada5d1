package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nidhogg/labwork/internal/gateway"
)

func TestTopicOf(t *testing.T) {
	cases := []struct {
		activities []string
		want       string
	}{
		{[]string{"Heading to lunch", "Working"}, "food"},
		{[]string{"Grabbing a coffee"}, "food"},
		{[]string{"Taking a breather"}, "food"},
		{[]string{"Fighting a production incident"}, "incident"},
		{[]string{"Burned out"}, "incident"},
		{[]string{"Reviewing a PR"}, "work"},
		{nil, "work"},
	}
	for _, tc := range cases {
		if got := topicOf(tc.activities...); got != tc.want {
			t.Errorf("topicOf(%v) = %q, want %q", tc.activities, got, tc.want)
		}
	}
}

func TestEncounterLiftsBothAndLogs(t *testing.T) {
	a := testAgent("a1", "frontend", StatusIdle)
	b := testAgent("a2", "backend", StatusIdle)
	a.Mood, b.Mood = 0.5, 0.5
	store := newStubStore(a, b)
	eng, _, hub := newTestEngine(t, store)

	eng.Encounter(context.Background(), []*Agent{a, b})

	for _, id := range []string{"a1", "a2"} {
		got, _ := store.GetAgent(context.Background(), id)
		if math.Abs(got.Mood-0.55) > 1e-9 {
			t.Fatalf("agent %s mood = %f, want 0.55", id, got.Mood)
		}
		if got.Activity != "Chatting about work" {
			t.Fatalf("agent %s activity = %q", id, got.Activity)
		}
	}

	if entries := eng.chatLog.Recent(0); len(entries) != 1 {
		t.Fatalf("chat log entries = %d, want 1", len(entries))
	} else if len(entries[0].Agents) != 2 {
		t.Fatalf("chat entry names = %v", entries[0].Agents)
	}
	if msgs := hub.byType(gateway.EventChatMessage); len(msgs) != 1 {
		t.Fatalf("chat broadcasts = %d, want 1", len(msgs))
	}
}

func TestEncounterNeedsTwoAgents(t *testing.T) {
	a := testAgent("a1", "frontend", StatusIdle)
	store := newStubStore(a)
	eng, gen, _ := newTestEngine(t, store)

	eng.Encounter(context.Background(), []*Agent{a})

	if len(gen.speakers) != 0 {
		t.Fatalf("lone agent struck up a conversation with itself")
	}
}

func TestAskUnknownAgent(t *testing.T) {
	store := newStubStore()
	eng, _, _ := newTestEngine(t, store)

	_, err := eng.Ask(context.Background(), "ghost", "hello?")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAskBroadcastsReply(t *testing.T) {
	a := testAgent("a1", "frontend", StatusIdle)
	store := newStubStore(a)
	eng, _, hub := newTestEngine(t, store)

	reply, err := eng.Ask(context.Background(), "a1", "how is it going?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Reply == "" {
		t.Fatalf("empty reply")
	}
	if msgs := hub.byType(gateway.EventChatMessage); len(msgs) != 1 {
		t.Fatalf("chat broadcasts = %d, want 1", len(msgs))
	}
}

func TestUserMessageChainCapsAtMaxTurns(t *testing.T) {
	agents := []*Agent{
		testAgent("a1", "frontend", StatusIdle),
		testAgent("a2", "backend", StatusIdle),
		testAgent("a3", "designer", StatusIdle),
	}
	store := newStubStore(agents...)
	eng, gen, _ := newTestEngine(t, store)
	// Force the chain to always continue; only the turn cap stops it.
	eng.tuning.ChainStartProb = 1.0
	eng.tuning.ChainDecay = 0

	if err := eng.UserMessage(context.Background(), "", "morning all"); err != nil {
		t.Fatalf("UserMessage: %v", err)
	}

	if len(gen.speakers) != eng.tuning.ChainMaxTurns {
		t.Fatalf("turns = %d, want %d", len(gen.speakers), eng.tuning.ChainMaxTurns)
	}
	for i := 1; i < len(gen.speakers); i++ {
		if gen.speakers[i] == gen.speakers[i-1] {
			t.Fatalf("turn %d repeated speaker %s", i, gen.speakers[i])
		}
	}
}

func TestUserMessageZeroProbIsSingleTurn(t *testing.T) {
	store := newStubStore(testAgent("a1", "frontend", StatusIdle))
	eng, gen, _ := newTestEngine(t, store)
	eng.tuning.ChainStartProb = 0

	if err := eng.UserMessage(context.Background(), "a1", "quick one"); err != nil {
		t.Fatalf("UserMessage: %v", err)
	}
	if len(gen.speakers) != 1 {
		t.Fatalf("turns = %d, want 1", len(gen.speakers))
	}
	if gen.speakers[0] != "a1" {
		t.Fatalf("addressed agent did not answer, got %s", gen.speakers[0])
	}
}

func TestUserMessageUnknownAddressee(t *testing.T) {
	store := newStubStore(testAgent("a1", "frontend", StatusIdle))
	eng, _, _ := newTestEngine(t, store)

	err := eng.UserMessage(context.Background(), "ghost", "hello?")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserMessageEmptyRoster(t *testing.T) {
	store := newStubStore()
	eng, _, _ := newTestEngine(t, store)

	err := eng.UserMessage(context.Background(), "", "anyone here?")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
