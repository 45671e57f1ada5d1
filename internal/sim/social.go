package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/labwork/internal/dialogue"
	"github.com/nidhogg/labwork/internal/gateway"
	"go.uber.org/zap"
)

// topicOf derives a coarse conversation topic from activity text.
// Anything outside the small vocabulary defaults to shop talk.
func topicOf(activities ...string) string {
	joined := strings.ToLower(strings.Join(activities, " "))
	switch {
	case strings.Contains(joined, "lunch"), strings.Contains(joined, "coffee"),
		strings.Contains(joined, "food"), strings.Contains(joined, "breather"):
		return "food"
	case strings.Contains(joined, "incident"), strings.Contains(joined, "burned"):
		return "incident"
	default:
		return "work"
	}
}

// Encounter pairs two random agents for a short exchange: one dialogue
// generation, a chat-log append, a small mood lift for both, and a
// broadcast. Skipped silently when fewer than two agents exist.
func (e *Engine) Encounter(ctx context.Context, agents []*Agent) {
	if len(agents) < 2 {
		return
	}
	i := e.intn(len(agents))
	j := e.intn(len(agents) - 1)
	if j >= i {
		j++
	}
	a, b := agents[i], agents[j]

	topic := topicOf(a.Activity, b.Activity)
	label := "Chatting about " + topic

	situation := fmt.Sprintf(
		"You bump into your coworker %s (%s) near their desk. Their current activity: %q. "+
			"The topic on everyone's mind is %s. Produce a short two-line exchange: "+
			"your opening line and their likely comeback.",
		b.Name, b.Role, b.Activity, topic)

	reply := e.gen.Generate(ctx, profileOf(a), situation)
	text := reply.Reply

	for _, id := range []string{a.ID, b.ID} {
		err := e.store.UpdateAgent(ctx, id, func(ag *Agent) {
			ag.Activity = label
			ag.NudgeMood(e.tuning.SocialMoodLift)
		})
		if err != nil {
			e.logger.Warn("encounter skipped agent update", zap.String("agent", id), zap.Error(err))
		}
	}

	if e.relations != nil {
		e.relations.RecordEncounter(ctx, a.ID, b.ID, 0.05)
	}

	e.chatLog.Append(ChatEntry{
		Agents:    []string{a.Name, b.Name},
		Text:      text,
		Timestamp: time.Now(),
	})

	e.hub.Broadcast(gateway.Event{
		Type: gateway.EventChatMessage,
		Payload: gateway.ChatPayload{
			SenderID: a.ID,
			Sender:   a.Name,
			Text:     text,
		},
	})
}

// Ask generates a direct reply from one agent to an observer prompt.
// Returns ErrNotFound when the agent does not exist.
func (e *Engine) Ask(ctx context.Context, agentID, prompt string) (dialogue.Reply, error) {
	agent, err := e.store.GetAgent(ctx, agentID)
	if err != nil {
		return dialogue.Reply{}, err
	}
	reply := e.gen.Generate(ctx, profileOf(agent),
		"A human observer asks you directly: "+prompt)

	e.hub.Broadcast(gateway.Event{
		Type: gateway.EventChatMessage,
		Payload: gateway.ChatPayload{
			SenderID: agent.ID,
			Sender:   agent.Name,
			Text:     reply.Reply,
		},
	})
	return reply, nil
}

// UserMessage runs the multi-turn chain for a user-addressed message.
// The first turn answers the user; subsequent turns continue with a
// probability that decays each turn, and the next speaker excludes only
// the one who just spoke. Turn replies are broadcast as they land.
func (e *Engine) UserMessage(ctx context.Context, agentID, text string) error {
	agents, err := e.store.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	if len(agents) == 0 {
		return ErrNotFound
	}

	speaker := agents[0]
	if agentID != "" {
		speaker = nil
		for _, a := range agents {
			if a.ID == agentID {
				speaker = a
				break
			}
		}
		if speaker == nil {
			return ErrNotFound
		}
	} else if len(agents) > 1 {
		speaker = e.pick(agents)
	}

	situation := "A user in the office chat says to you: " + text
	prob := e.tuning.ChainStartProb
	lastLine := text

	for turn := 0; turn < e.tuning.ChainMaxTurns; turn++ {
		reply := e.gen.Generate(ctx, profileOf(speaker), situation)
		lastLine = reply.Reply

		e.chatLog.Append(ChatEntry{
			Agents:    []string{speaker.Name},
			Text:      lastLine,
			Timestamp: time.Now(),
		})
		e.hub.Broadcast(gateway.Event{
			Type: gateway.EventChatMessage,
			Payload: gateway.ChatPayload{
				SenderID: speaker.ID,
				Sender:   speaker.Name,
				Text:     lastLine,
			},
		})

		if prob <= 0 || e.float64() >= prob {
			break
		}
		prob -= e.tuning.ChainDecay

		next := e.nextSpeaker(agents, speaker.ID)
		if next == nil {
			break
		}
		situation = fmt.Sprintf("Your coworker %s just said: %q. Keep the office conversation going.",
			speaker.Name, lastLine)
		speaker = next
	}
	return nil
}

// nextSpeaker picks a random agent excluding only the immediately
// preceding speaker. Earlier speakers may talk again.
func (e *Engine) nextSpeaker(agents []*Agent, lastID string) *Agent {
	var pool []*Agent
	for _, a := range agents {
		if a.ID != lastID {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	return e.pick(pool)
}

func profileOf(a *Agent) dialogue.Profile {
	return dialogue.Profile{
		ID:     a.ID,
		Name:   a.Name,
		Role:   a.Role,
		Mood:   a.Mood,
		Stress: a.Stress,
	}
}
