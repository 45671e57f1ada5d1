// Package dialogue assembles memory-augmented prompts and turns model
// output into validated structured replies.
package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/labwork/internal/provider"
	"go.uber.org/zap"
)

// Profile describes the speaking agent for persona conditioning.
type Profile struct {
	ID     string
	Name   string
	Role   string
	Mood   float64
	Stress int
}

// Reply is the structured result every generation resolves to.
type Reply struct {
	Thought string `json:"thought"`
	Reply   string `json:"reply"`
	Action  string `json:"action"`
}

// Fallback values used whenever the model cannot be reached or returns
// garbage. Observers see degraded content, never an error.
const (
	FallbackReply  = "..."
	FallbackAction = "work"

	// NoMemoryPlaceholder stands in for the memory layer when recall
	// comes back empty, so the prompt shape stays constant.
	NoMemoryPlaceholder = "No relevant memories."
)

// systemContract is the fixed persona/format layer. Callers cannot
// override it; the situation and memory layers are appended below it.
const systemContract = `You are an AI agent in an IT office simulation.
Roleplay the character described in the incoming data.
YOU MUST ANSWER WITH VALID JSON ONLY.
No preamble, no markdown fences.
Response format:
{
    "thought": "your hidden reasoning about the situation",
    "reply": "your spoken line, first person",
    "action": "work" | "rest" | "complain"
}
Keep it short. Be vivid and emotional, not corporate.`

// Completer is the text-generation capability. provider.Router satisfies it.
type Completer interface {
	Complete(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

// Memory is the recall/write-back collaborator. memory.Store satisfies it.
type Memory interface {
	Recall(ctx context.Context, agentID, query string, k int) []string
	Remember(ctx context.Context, agentID, text string)
}

// Generator produces in-character replies conditioned on recalled memories.
type Generator struct {
	llm     Completer
	memory  Memory
	timeout time.Duration
	logger  *zap.Logger
}

// NewGenerator creates a dialogue generator. memory may be nil; the
// generator then always uses the no-memory placeholder. Sampling knobs
// (temperature, token cap) are left to the provider configuration.
func NewGenerator(llm Completer, mem Memory, timeout time.Duration, logger *zap.Logger) *Generator {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Generator{
		llm:     llm,
		memory:  mem,
		timeout: timeout,
		logger:  logger,
	}
}

// Generate builds the three-layer prompt (persona contract, situation,
// recalled memory), calls the model with a bounded timeout, and returns
// a validated Reply. It never returns an error: every failure mode
// resolves to the fixed fallback.
func (g *Generator) Generate(ctx context.Context, speaker Profile, situation string) Reply {
	recalled := g.recall(ctx, speaker.ID, situation)

	prompt := fmt.Sprintf(`[SPEAKER]:
%s, %s. Mood %.2f of 1.0, stress %d of 100.

[CURRENT SITUATION / INCOMING DATA]:
%s

[LONG-TERM MEMORY / RAG CONTEXT]:
%s

Your reaction:`, speaker.Name, speaker.Role, speaker.Mood, speaker.Stress, situation, recalled)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.llm.Complete(callCtx, &provider.Request{
		System: systemContract,
		Prompt: prompt,
	})
	if err != nil {
		g.logger.Warn("generation failed, using fallback",
			zap.String("agent", speaker.ID), zap.Error(err))
		return Reply{Reply: FallbackReply, Action: FallbackAction}
	}

	reply := parseReply(resp.Content)
	if reply.Reply == FallbackReply {
		return reply
	}

	// Successful exchanges become future memories.
	if g.memory != nil {
		g.memory.Remember(ctx, speaker.ID,
			fmt.Sprintf("Situation: %s... Reaction: %s", truncate(situation, 100), reply.Reply))
	}
	return reply
}

// recall fetches memory context or the placeholder. A generator without
// a memory store still produces a well-formed prompt.
func (g *Generator) recall(ctx context.Context, agentID, query string) string {
	if g.memory == nil {
		return NoMemoryPlaceholder
	}
	texts := g.memory.Recall(ctx, agentID, query, 0)
	if len(texts) == 0 {
		return NoMemoryPlaceholder
	}
	return strings.Join(texts, "\n")
}

// parseReply strictly decodes the model output. Anything that is not
// the expected schema, or carries an empty reply, collapses to the
// fallback so garbage never propagates to observers.
func parseReply(raw string) Reply {
	var r Reply
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &r); err != nil {
		return Reply{Reply: FallbackReply, Action: FallbackAction}
	}
	if strings.TrimSpace(r.Reply) == "" {
		r.Reply = FallbackReply
	}
	switch r.Action {
	case "work", "rest", "complain":
	default:
		r.Action = FallbackAction
	}
	return r
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
