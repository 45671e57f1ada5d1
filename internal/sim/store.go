package sim

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a referenced agent or task does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator for agent and task records.
// Every method is one narrow transaction; callers never hold a store
// lock across an external API call.
type Store interface {
	// ListAgents returns all active agents.
	ListAgents(ctx context.Context) ([]*Agent, error)
	// GetAgent returns one agent by ID, or ErrNotFound.
	GetAgent(ctx context.Context, id string) (*Agent, error)
	// SaveAgent inserts or fully replaces an agent record.
	SaveAgent(ctx context.Context, a *Agent) error
	// UpdateAgent applies fn to the freshest copy of the agent record and
	// persists the result. Numeric fields are therefore compute-then-clamp
	// against current values, never a blind overwrite of a stale read.
	UpdateAgent(ctx context.Context, id string, fn func(*Agent)) error

	GetTask(ctx context.Context, id string) (*Task, error)
	SaveTask(ctx context.Context, t *Task) error
	ListTasks(ctx context.Context) ([]*Task, error)
}
