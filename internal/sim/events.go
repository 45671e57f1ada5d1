package sim

import (
	"context"
	"fmt"

	"github.com/nidhogg/labwork/internal/gateway"
	"go.uber.org/zap"
)

// triggerEvent applies at most one world event for the tick. The single
// draw is partitioned into mutually exclusive ranges, so event classes
// can never stack. An empty target pool is a silent no-op: the event is
// neither retried nor replaced.
func (e *Engine) triggerEvent(ctx context.Context, agents []*Agent, draw float64) {
	t := e.tuning
	switch {
	case draw < t.IncidentChance:
		e.fireIncident(ctx, agents)
	case draw < t.IncidentChance+t.ReliefChance:
		e.fireRelief(ctx, agents)
	case draw < t.IncidentChance+t.ReliefChance+t.FrictionChance:
		e.fireFriction(ctx, agents)
	}
}

// fireIncident drops a production incident on one ops/backend agent.
// Agents already fighting an incident are not re-selected.
func (e *Engine) fireIncident(ctx context.Context, agents []*Agent) {
	var pool []*Agent
	for _, a := range agents {
		if opsRole(a.Role) && a.Status != StatusIncident {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		return
	}
	target := e.pick(pool)

	err := e.store.UpdateAgent(ctx, target.ID, func(a *Agent) {
		a.Status = StatusIncident
		a.Activity = "Fighting a production incident"
		a.NudgeStress(e.tuning.IncidentStress)
		a.NudgeMood(-e.tuning.IncidentMoodHit)
	})
	if err != nil {
		e.logger.Warn("incident event skipped", zap.String("agent", target.ID), zap.Error(err))
		return
	}

	e.logger.Info("incident fired", zap.String("agent", target.ID), zap.String("name", target.Name))
	if e.memory != nil {
		e.memory.Remember(ctx, target.ID,
			fmt.Sprintf("A production incident landed on me while I was %s. Stress through the roof.", target.Activity))
	}
	e.hub.Broadcast(gateway.Event{
		Type: gateway.EventAgentAction,
		Payload: gateway.AgentActionPayload{
			AgentID: target.ID,
			Message: target.Name + " got paged: production is down!",
		},
	})
}

// fireRelief sends everyone not mid-incident off to rest.
func (e *Engine) fireRelief(ctx context.Context, agents []*Agent) {
	fired := false
	for _, snap := range agents {
		if snap.Status == StatusIncident {
			continue
		}
		err := e.store.UpdateAgent(ctx, snap.ID, func(a *Agent) {
			if a.Status == StatusIncident {
				return
			}
			a.Status = StatusResting
			a.Activity = "Taking a breather"
			a.NudgeStress(-e.tuning.ReliefStress)
			a.NudgeMood(e.tuning.ReliefMoodLift)
		})
		if err != nil {
			e.logger.Warn("relief event skipped agent", zap.String("agent", snap.ID), zap.Error(err))
			continue
		}
		fired = true
	}
	if fired {
		e.logger.Info("relief event fired")
	}
}

// fireFriction blocks one working agent on a tooling failure.
func (e *Engine) fireFriction(ctx context.Context, agents []*Agent) {
	var pool []*Agent
	for _, a := range agents {
		if a.Status == StatusWorking {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		return
	}
	target := e.pick(pool)

	err := e.store.UpdateAgent(ctx, target.ID, func(a *Agent) {
		a.Status = StatusError
		a.Activity = "Blocked by tooling failure"
		a.NudgeStress(e.tuning.FrictionStress)
	})
	if err != nil {
		e.logger.Warn("friction event skipped", zap.String("agent", target.ID), zap.Error(err))
		return
	}
	e.logger.Info("friction fired", zap.String("agent", target.ID))
}
