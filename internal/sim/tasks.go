package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/labwork/internal/gateway"
	"go.uber.org/zap"
)

// CreateTask validates the assignee reference (if any) and persists a
// new task in the todo state.
func (e *Engine) CreateTask(ctx context.Context, title, description string, assigneeID *string) (*Task, error) {
	if assigneeID != nil {
		if _, err := e.store.GetAgent(ctx, *assigneeID); err != nil {
			return nil, fmt.Errorf("assignee %s: %w", *assigneeID, err)
		}
	}
	t := &Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Status:      TaskTodo,
		AssigneeID:  assigneeID,
		CreatedAt:   time.Now(),
	}
	if err := e.store.SaveTask(ctx, t); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return t, nil
}

// AssignTask validates both references, then runs the assignment side
// effects as a contained background job: a panicking or failing job is
// logged, never fatal to the caller or the tick loop.
func (e *Engine) AssignTask(ctx context.Context, taskID, agentID string) error {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("task %s: %w", taskID, err)
	}
	if _, err := e.store.GetAgent(ctx, agentID); err != nil {
		return fmt.Errorf("agent %s: %w", agentID, err)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("assignment job panicked", zap.Any("panic", r))
			}
		}()
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		e.runAssignment(jobCtx, task, agentID)
	}()
	return nil
}

// runAssignment applies the skill-match mood heuristic, moves the agent
// to WORKING, advances the task, and broadcasts the agent's reaction.
func (e *Engine) runAssignment(ctx context.Context, task *Task, agentID string) {
	matched := false
	var mood float64

	err := e.store.UpdateAgent(ctx, agentID, func(a *Agent) {
		matched = skillMatch(a, task)
		delta := e.tuning.TaskMoodDelta
		if !matched {
			delta = -delta
		}
		a.NudgeMood(delta)
		a.Status = StatusWorking
		a.Activity = "Working on: " + task.Title
		a.TaskID = &task.ID
		mood = a.Mood
	})
	if err != nil {
		e.logger.Warn("assignment update failed",
			zap.String("agent", agentID), zap.String("task", task.ID), zap.Error(err))
		return
	}

	task.Status = TaskInProgress
	task.AssigneeID = &agentID
	if err := e.store.SaveTask(ctx, task); err != nil {
		e.logger.Warn("assignment task save failed", zap.String("task", task.ID), zap.Error(err))
	}

	agent, err := e.store.GetAgent(ctx, agentID)
	if err != nil {
		return
	}

	sentiment := "right up my alley"
	if !matched {
		sentiment = "not really my thing"
	}
	reply := e.gen.Generate(ctx, profileOf(agent), fmt.Sprintf(
		"You just got assigned the task %q (%s). Honestly, it is %s. React.",
		task.Title, task.Description, sentiment))

	e.hub.Broadcast(gateway.Event{
		Type: gateway.EventAgentAction,
		Payload: gateway.AgentActionPayload{
			AgentID: agentID,
			Message: reply.Reply,
			NewMood: mood,
		},
	})
}

// skillMatch reports whether any of the agent's skill tags appears as a
// substring of the task title or description.
func skillMatch(a *Agent, t *Task) bool {
	haystack := strings.ToLower(t.Title + " " + t.Description)
	for _, tag := range a.SkillTags() {
		if strings.Contains(haystack, tag) {
			return true
		}
	}
	return false
}
