package sim

import (
	"strings"
	"time"
)

// Status represents what an agent is currently doing.
type Status string

const (
	StatusIdle     Status = "IDLE"
	StatusWorking  Status = "WORKING"
	StatusResting  Status = "RESTING"
	StatusError    Status = "ERROR"
	StatusIncident Status = "INCIDENT"
)

// Mood and stress bounds. Mood is a continuous score (0 = miserable,
// 1 = elated); stress is an integer game mechanic.
const (
	MoodMin   = 0.0
	MoodMax   = 1.0
	StressMin = 0
	StressMax = 100
	CoordMin  = 0
	CoordMax  = 100
)

// Agent is a simulated coworker. All numeric fields stay inside their
// declared bounds; mutate them through the Nudge/Set helpers.
type Agent struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	Skills   string    `json:"skills"` // comma-separated tags
	Status   Status    `json:"status"`
	Activity string    `json:"current_activity"`
	Mood     float64   `json:"current_mood_score"`
	Stress   int       `json:"stress"`
	X        int       `json:"coord_x"`
	Y        int       `json:"coord_y"`
	TaskID   *string   `json:"task_id,omitempty"`
	Active   bool      `json:"active"`
	HiredAt  time.Time `json:"hired_at"`
}

// NewAgent returns a freshly hired agent with default vitals: a good
// mood, no stress, and a desk in the middle of the office.
func NewAgent(id, name, role, skills string) *Agent {
	return &Agent{
		ID:       id,
		Name:     name,
		Role:     role,
		Skills:   skills,
		Status:   StatusIdle,
		Activity: "Booting up...",
		Mood:     0.8,
		Stress:   0,
		X:        50,
		Y:        50,
		Active:   true,
		HiredAt:  time.Now(),
	}
}

// NudgeMood adds delta to the mood score and clamps the result.
func (a *Agent) NudgeMood(delta float64) {
	a.Mood = clampFloat(a.Mood+delta, MoodMin, MoodMax)
}

// NudgeStress adds delta to the stress level and clamps the result.
func (a *Agent) NudgeStress(delta int) {
	a.Stress = clampInt(a.Stress+delta, StressMin, StressMax)
}

// MoveTo places the agent at the given coordinates, clamped to the office.
func (a *Agent) MoveTo(x, y int) {
	a.X = clampInt(x, CoordMin, CoordMax)
	a.Y = clampInt(y, CoordMin, CoordMax)
}

// SkillTags splits the comma-separated skill string into trimmed
// lowercase tags, dropping empties.
func (a *Agent) SkillTags() []string {
	var tags []string
	for _, t := range strings.Split(a.Skills, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Clamp forces every bounded field back into range. Store implementations
// call this before persisting so no write can violate the invariants.
func (a *Agent) Clamp() {
	a.Mood = clampFloat(a.Mood, MoodMin, MoodMax)
	a.Stress = clampInt(a.Stress, StressMin, StressMax)
	a.X = clampInt(a.X, CoordMin, CoordMax)
	a.Y = clampInt(a.Y, CoordMin, CoordMax)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task is a unit of work that can be assigned to an agent.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
