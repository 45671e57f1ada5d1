package store

import (
	"context"
	"sort"
	"sync"

	"github.com/nidhogg/labwork/internal/sim"
)

// Memory is an in-process sim.Store. It backs unit tests and runs
// without a database DSN; nothing survives a restart.
type Memory struct {
	mu     sync.RWMutex
	agents map[string]*sim.Agent
	tasks  map[string]*sim.Task
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents: make(map[string]*sim.Agent),
		tasks:  make(map[string]*sim.Task),
	}
}

func cloneAgent(a *sim.Agent) *sim.Agent {
	cp := *a
	if a.TaskID != nil {
		id := *a.TaskID
		cp.TaskID = &id
	}
	return &cp
}

func cloneTask(t *sim.Task) *sim.Task {
	cp := *t
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		cp.AssigneeID = &id
	}
	return &cp
}

// ListAgents returns all active agents in hire order.
func (m *Memory) ListAgents(ctx context.Context) ([]*sim.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var agents []*sim.Agent
	for _, a := range m.agents {
		if a.Active {
			agents = append(agents, cloneAgent(a))
		}
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].HiredAt.Before(agents[j].HiredAt)
	})
	return agents, nil
}

// GetAgent returns one agent by ID.
func (m *Memory) GetAgent(ctx context.Context, id string) (*sim.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, sim.ErrNotFound
	}
	return cloneAgent(a), nil
}

// SaveAgent upserts the full agent record.
func (m *Memory) SaveAgent(ctx context.Context, a *sim.Agent) error {
	a.Clamp()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.ID] = cloneAgent(a)
	return nil
}

// UpdateAgent applies fn to the stored record under the write lock, so
// concurrent updaters always see each other's writes.
func (m *Memory) UpdateAgent(ctx context.Context, id string, fn func(*sim.Agent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return sim.ErrNotFound
	}
	fn(a)
	a.Clamp()
	return nil
}

// GetTask returns one task by ID.
func (m *Memory) GetTask(ctx context.Context, id string) (*sim.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, sim.ErrNotFound
	}
	return cloneTask(t), nil
}

// SaveTask upserts a task.
func (m *Memory) SaveTask(ctx context.Context, t *sim.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = cloneTask(t)
	return nil
}

// ListTasks returns all tasks, newest first.
func (m *Memory) ListTasks(ctx context.Context) ([]*sim.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tasks []*sim.Task
	for _, t := range m.tasks {
		tasks = append(tasks, cloneTask(t))
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}
