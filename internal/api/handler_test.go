package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/labwork/internal/dialogue"
	"github.com/nidhogg/labwork/internal/gateway"
	"github.com/nidhogg/labwork/internal/sim"
	"github.com/nidhogg/labwork/internal/store"
	"go.uber.org/zap"
)

type cannedGen struct {
	mu sync.Mutex
	n  int
}

func (g *cannedGen) Generate(ctx context.Context, speaker dialogue.Profile, situation string) dialogue.Reply {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return dialogue.Reply{Thought: "ok", Reply: "sure thing", Action: "work"}
}

func newTestHandler(t *testing.T) (*Handler, sim.Store) {
	t.Helper()
	logger := zap.NewNop()
	st := store.NewMemory()
	hub := gateway.NewHub(logger)
	chatLog := sim.NewChatLog(50, nil, logger)
	engine := sim.NewEngine(st, &cannedGen{}, hub, nil, chatLog, nil, sim.DefaultTuning(), 1, logger)
	clock := sim.NewClock(time.Hour, 1.0, engine, logger)
	return NewHandler(st, engine, clock, chatLog, hub, nil, logger), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHireAgentDefaults(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/agents", map[string]string{
		"name": "Mara", "role": "backend", "skills": "go, sql",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var a sim.Agent
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	if a.ID == "" {
		t.Fatalf("no ID assigned")
	}
	if a.Mood != 0.8 || a.Stress != 0 || a.X != 50 || a.Y != 50 {
		t.Fatalf("wrong defaults: %+v", a)
	}
	if a.Status != sim.StatusIdle {
		t.Fatalf("status = %s", a.Status)
	}
}

func TestHireAgentRequiresName(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/agents", map[string]string{"role": "backend"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodGet, "/api/agents/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDeactivateAgentLeavesRoster(t *testing.T) {
	h, st := newTestHandler(t)
	a := sim.NewAgent("a1", "Mara", "backend", "")
	st.SaveAgent(context.Background(), a)

	rec := doJSON(t, h.Router(), http.MethodDelete, "/api/agents/a1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doJSON(t, h.Router(), http.MethodGet, "/api/agents", nil)
	var agents []sim.Agent
	if err := json.Unmarshal(rec.Body.Bytes(), &agents); err != nil {
		t.Fatal(err)
	}
	if len(agents) != 0 {
		t.Fatalf("deactivated agent still listed: %v", agents)
	}
}

func TestCreateTask(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/tasks", map[string]string{
		"title": "Fix build", "description": "CI is red",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var task sim.Task
	json.Unmarshal(rec.Body.Bytes(), &task)
	if task.Status != sim.TaskTodo {
		t.Fatalf("status = %s", task.Status)
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/tasks", map[string]string{"description": "no title"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAssignTaskAccepted(t *testing.T) {
	h, st := newTestHandler(t)
	st.SaveAgent(context.Background(), sim.NewAgent("a1", "Mara", "backend", "go"))

	rec := doJSON(t, h.Router(), http.MethodPost, "/api/tasks", map[string]string{"title": "Fix build"})
	var task sim.Task
	json.Unmarshal(rec.Body.Bytes(), &task)

	rec = doJSON(t, h.Router(), http.MethodPost,
		fmt.Sprintf("/api/tasks/%s/assign/a1", task.ID), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestAssignTaskUnknownRefs(t *testing.T) {
	h, st := newTestHandler(t)
	st.SaveAgent(context.Background(), sim.NewAgent("a1", "Mara", "backend", ""))

	rec := doJSON(t, h.Router(), http.MethodPost, "/api/tasks/ghost/assign/a1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing task: status = %d", rec.Code)
	}
}

func TestPostMessageAccepted(t *testing.T) {
	h, st := newTestHandler(t)
	st.SaveAgent(context.Background(), sim.NewAgent("a1", "Mara", "backend", ""))

	rec := doJSON(t, h.Router(), http.MethodPost, "/api/messages", map[string]string{"text": "hello office"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostMessageRequiresText(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/messages", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecentChats(t *testing.T) {
	h, _ := newTestHandler(t)
	h.chatLog.Append(sim.ChatEntry{Agents: []string{"Mara"}, Text: "hi", Timestamp: time.Now()})

	rec := doJSON(t, h.Router(), http.MethodGet, "/api/chats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []sim.ChatEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Text != "hi" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestSimulationStatusAndControls(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/simulation", nil)
	var status map[string]any
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status["running"] != true {
		t.Fatalf("status = %v", status)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/simulation/speed", map[string]float64{"speed": 2.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("speed status = %d", rec.Code)
	}
	if h.clock.Speed() != 2.5 {
		t.Fatalf("speed = %f", h.clock.Speed())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/simulation/speed", map[string]float64{"speed": -1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative speed status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/simulation/pause", map[string]bool{"running": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("pause status = %d", rec.Code)
	}
	if h.clock.Running() {
		t.Fatalf("clock still running")
	}
}

func TestAgentRelationsUnconfigured(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodGet, "/api/agents/a1/relations", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
