// Package store persists agent and task records. The Postgres
// implementation backs real deployments; Memory backs tests and
// DSN-less runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nidhogg/labwork/internal/sim"
	"go.uber.org/zap"
)

// Postgres implements sim.Store on a pgx connection pool.
type Postgres struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects and pings the database.
func NewPostgres(dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &Postgres{db: pool, logger: logger}, nil
}

// Migrate executes all .up.sql files from the migrations directory in
// lexical order.
func (s *Postgres) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		s.logger.Info("migration applied", zap.String("file", f))
	}
	return nil
}

// Close shuts down the pool.
func (s *Postgres) Close() {
	s.db.Close()
}

const agentColumns = `id, name, role, skills, status, current_activity,
	mood, stress, coord_x, coord_y, task_id, active, hired_at`

func scanAgent(row pgx.Row) (*sim.Agent, error) {
	var a sim.Agent
	err := row.Scan(
		&a.ID, &a.Name, &a.Role, &a.Skills, &a.Status, &a.Activity,
		&a.Mood, &a.Stress, &a.X, &a.Y, &a.TaskID, &a.Active, &a.HiredAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAgents returns all active agents in hire order.
func (s *Postgres) ListAgents(ctx context.Context) ([]*sim.Agent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE active ORDER BY hired_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*sim.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// GetAgent returns one agent by ID.
func (s *Postgres) GetAgent(ctx context.Context, id string) (*sim.Agent, error) {
	a, err := scanAgent(s.db.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sim.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return a, nil
}

// SaveAgent upserts the full agent record.
func (s *Postgres) SaveAgent(ctx context.Context, a *sim.Agent) error {
	a.Clamp()
	_, err := s.db.Exec(ctx, `
		INSERT INTO agents (id, name, role, skills, status, current_activity,
			mood, stress, coord_x, coord_y, task_id, active, hired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			skills = EXCLUDED.skills,
			status = EXCLUDED.status,
			current_activity = EXCLUDED.current_activity,
			mood = EXCLUDED.mood,
			stress = EXCLUDED.stress,
			coord_x = EXCLUDED.coord_x,
			coord_y = EXCLUDED.coord_y,
			task_id = EXCLUDED.task_id,
			active = EXCLUDED.active`,
		a.ID, a.Name, a.Role, a.Skills, a.Status, a.Activity,
		a.Mood, a.Stress, a.X, a.Y, a.TaskID, a.Active, a.HiredAt,
	)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAgent applies fn to the current row under a row lock, so a tick
// phase and a request handler racing on the same agent both see fresh
// values and clamp after computing.
func (s *Postgres) UpdateAgent(ctx context.Context, id string, fn func(*sim.Agent)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAgent(tx.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return sim.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock agent %s: %w", id, err)
	}

	fn(a)
	a.Clamp()

	_, err = tx.Exec(ctx, `
		UPDATE agents SET name=$2, role=$3, skills=$4, status=$5,
			current_activity=$6, mood=$7, stress=$8, coord_x=$9, coord_y=$10,
			task_id=$11, active=$12
		WHERE id = $1`,
		a.ID, a.Name, a.Role, a.Skills, a.Status, a.Activity,
		a.Mood, a.Stress, a.X, a.Y, a.TaskID, a.Active,
	)
	if err != nil {
		return fmt.Errorf("update agent %s: %w", id, err)
	}
	return tx.Commit(ctx)
}

// GetTask returns one task by ID.
func (s *Postgres) GetTask(ctx context.Context, id string) (*sim.Task, error) {
	var t sim.Task
	err := s.db.QueryRow(ctx,
		`SELECT id, title, description, status, assignee_id, created_at
		 FROM tasks WHERE id = $1`, id).
		Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.AssigneeID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sim.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// SaveTask upserts a task.
func (s *Postgres) SaveTask(ctx context.Context, t *sim.Task) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tasks (id, title, description, status, assignee_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			assignee_id = EXCLUDED.assignee_id`,
		t.ID, t.Title, t.Description, t.Status, t.AssigneeID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// ListTasks returns all tasks, newest first.
func (s *Postgres) ListTasks(ctx context.Context) ([]*sim.Task, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, description, status, assignee_id, created_at
		 FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*sim.Task
	for rows.Next() {
		var t sim.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.AssigneeID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}
