// Package sim contains the simulation tick engine: stress decay, random
// world events, social encounters and movement, applied to the shared
// agent roster every tick.
package sim

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/nidhogg/labwork/internal/dialogue"
	"github.com/nidhogg/labwork/internal/gateway"
	"go.uber.org/zap"
)

// Generator produces in-character dialogue. dialogue.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, speaker dialogue.Profile, situation string) dialogue.Reply
}

// Broadcaster pushes events to observers. gateway.Hub satisfies it.
type Broadcaster interface {
	Broadcast(ev gateway.Event)
}

// MemoryWriter records episodic facts. memory.Store satisfies it.
type MemoryWriter interface {
	Remember(ctx context.Context, agentID, text string)
}

// Tuning holds the numeric knobs of the simulation. The zero value is
// unusable; start from DefaultTuning. The JSON tags let the config
// layer overlay individual knobs from the config file.
type Tuning struct {
	IncidentChance float64 `json:"incident_chance"` // weighted-draw range for incidents
	ReliefChance   float64 `json:"relief_chance"`
	FrictionChance float64 `json:"friction_chance"`
	SocialChance   float64 `json:"social_chance"` // per-tick gate for a social encounter
	MovementChance float64 `json:"movement_chance"` // per-agent chance to wander

	StressWorkMax     int `json:"stress_work_max"` // upper bound of the per-tick working stress roll
	StressRestRelief  int `json:"stress_rest_relief"`
	IncidentStress    int `json:"incident_stress"`
	ReliefStress      int `json:"relief_stress"`
	FrictionStress    int `json:"friction_stress"`
	RecoveryThreshold int `json:"recovery_threshold"` // ERROR clears to IDLE below this stress

	IncidentMoodHit float64 `json:"incident_mood_hit"`
	ReliefMoodLift  float64 `json:"relief_mood_lift"`
	SocialMoodLift  float64 `json:"social_mood_lift"`
	TaskMoodDelta   float64 `json:"task_mood_delta"`

	ChainMaxTurns  int     `json:"chain_max_turns"`
	ChainStartProb float64 `json:"chain_start_prob"`
	ChainDecay     float64 `json:"chain_decay"`
}

// DefaultTuning returns the canonical event table and deltas.
func DefaultTuning() Tuning {
	return Tuning{
		IncidentChance: 0.05,
		ReliefChance:   0.10,
		FrictionChance: 0.10,
		SocialChance:   0.25,
		MovementChance: 0.35,

		StressWorkMax:     5,
		StressRestRelief:  5,
		IncidentStress:    30,
		ReliefStress:      15,
		FrictionStress:    15,
		RecoveryThreshold: 30,

		IncidentMoodHit: 0.2,
		ReliefMoodLift:  0.1,
		SocialMoodLift:  0.05,
		TaskMoodDelta:   0.1,

		ChainMaxTurns:  4,
		ChainStartProb: 0.9,
		ChainDecay:     0.3,
	}
}

// Engine applies the four tick phases in fixed order. One Engine per
// world; the Clock drives it from a single goroutine, request handlers
// call into it concurrently.
type Engine struct {
	store     Store
	gen       Generator
	hub       Broadcaster
	memory    MemoryWriter
	chatLog   *ChatLog
	relations *RelationGraph // optional
	tuning    Tuning

	rng   *rand.Rand
	rngMu sync.Mutex

	tickMu sync.Mutex // overlap guard: a slow tick makes the next one skip

	logger *zap.Logger
}

// NewEngine wires the engine. relations and memory may be nil.
func NewEngine(store Store, gen Generator, hub Broadcaster, mem MemoryWriter,
	chatLog *ChatLog, relations *RelationGraph, tuning Tuning,
	seed int64, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		gen:       gen,
		hub:       hub,
		memory:    mem,
		chatLog:   chatLog,
		relations: relations,
		tuning:    tuning,
		rng:       rand.New(rand.NewSource(seed)),
		logger:    logger,
	}
}

// Tick runs one simulation step: stress, events, social, movement, in
// that order, each phase committing before the next starts. If the
// previous tick is still running this one is skipped so slow generation
// calls cannot compound random effects.
func (e *Engine) Tick(ctx context.Context) {
	if !e.tickMu.TryLock() {
		e.logger.Warn("previous tick still running, skipping")
		return
	}
	defer e.tickMu.Unlock()

	agents, err := e.store.ListAgents(ctx)
	if err != nil {
		e.logger.Warn("tick skipped, roster read failed", zap.Error(err))
		return
	}

	e.stressPhase(ctx, agents)
	e.eventPhase(ctx, agents)
	e.socialPhase(ctx, agents)
	e.movementPhase(ctx, agents)

	if e.relations != nil {
		e.relations.Decay(ctx)
	}

	e.broadcastState(ctx)
}

// stressPhase accrues stress for working agents, relieves resting ones,
// and handles burnout/recovery transitions. Each agent commits
// independently; a failed update skips that agent only.
func (e *Engine) stressPhase(ctx context.Context, agents []*Agent) {
	for _, snap := range agents {
		id := snap.ID
		err := e.store.UpdateAgent(ctx, id, func(a *Agent) {
			switch a.Status {
			case StatusWorking:
				a.NudgeStress(1 + e.intn(e.tuning.StressWorkMax))
			case StatusResting:
				a.NudgeStress(-e.tuning.StressRestRelief)
			}
			if a.Stress >= StressMax && a.Status != StatusIncident {
				a.Status = StatusError
				a.Activity = "Burned out"
			} else if a.Status == StatusError && a.Stress < e.tuning.RecoveryThreshold {
				a.Status = StatusIdle
				a.Activity = "Recovering"
			}
		})
		if err != nil {
			e.logger.Warn("stress phase skipped agent", zap.String("agent", id), zap.Error(err))
		}
	}
}

// eventPhase makes one weighted draw and fires at most one event class.
func (e *Engine) eventPhase(ctx context.Context, agents []*Agent) {
	e.triggerEvent(ctx, agents, e.float64())
}

// socialPhase rolls the encounter gate and resolves one encounter.
func (e *Engine) socialPhase(ctx context.Context, agents []*Agent) {
	if e.float64() < e.tuning.SocialChance {
		e.Encounter(ctx, agents)
	}
}

// movementPhase scatters a random subset of ambulatory agents.
func (e *Engine) movementPhase(ctx context.Context, agents []*Agent) {
	for _, snap := range agents {
		if snap.Status == StatusIncident || snap.Status == StatusError {
			continue
		}
		if e.float64() >= e.tuning.MovementChance {
			continue
		}
		id := snap.ID
		x, y := e.intn(CoordMax+1), e.intn(CoordMax+1)
		err := e.store.UpdateAgent(ctx, id, func(a *Agent) {
			if a.Status == StatusIncident || a.Status == StatusError {
				return // status changed since the snapshot
			}
			a.MoveTo(x, y)
			if a.Status == StatusIdle {
				a.Activity = "Wandering the office"
			}
		})
		if err != nil {
			e.logger.Warn("movement phase skipped agent", zap.String("agent", id), zap.Error(err))
		}
	}
}

// broadcastState pushes a fresh roster snapshot to all observers.
func (e *Engine) broadcastState(ctx context.Context) {
	agents, err := e.store.ListAgents(ctx)
	if err != nil {
		e.logger.Warn("state broadcast skipped", zap.Error(err))
		return
	}
	e.hub.Broadcast(gateway.Event{Type: gateway.EventStateUpdate, Payload: agents})
}

// opsRole reports whether a role belongs to the incident-eligible subset.
func opsRole(role string) bool {
	r := strings.ToLower(role)
	return strings.Contains(r, "ops") || strings.Contains(r, "backend") ||
		strings.Contains(r, "sre") || strings.Contains(r, "infra")
}

// intn returns a random int in [0,n), serialized for concurrent callers.
func (e *Engine) intn(n int) int {
	if n <= 0 {
		return 0
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

// float64 returns a random draw in [0,1).
func (e *Engine) float64() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

// pick returns a uniformly random element of pool.
func (e *Engine) pick(pool []*Agent) *Agent {
	return pool[e.intn(len(pool))]
}
