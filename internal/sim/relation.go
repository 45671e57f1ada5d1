package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Relation is a symmetric tie between two agents: one record per pair,
// not two directed ones. Affinity is clamped to [0,1].
type Relation struct {
	AgentA    string    `json:"agent_a"`
	AgentB    string    `json:"agent_b"`
	Affinity  float64   `json:"affinity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RelationGraph keeps pairwise affinity in Neo4j. Pair uniqueness is
// enforced by always storing the lexicographically smaller ID first.
type RelationGraph struct {
	driver    neo4j.DriverWithContext
	decayRate float64
	logger    *zap.Logger
}

// NewRelationGraph connects to Neo4j.
func NewRelationGraph(uri, user, password string, decayRate float64, logger *zap.Logger) (*RelationGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &RelationGraph{driver: driver, decayRate: decayRate, logger: logger}, nil
}

// Close shuts down the driver.
func (g *RelationGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// orderPair returns the two IDs in canonical order.
func orderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// RecordEncounter boosts the pair's affinity, creating the tie on first
// contact. Best-effort: failures are logged, the encounter stands.
func (g *RelationGraph) RecordEncounter(ctx context.Context, idA, idB string, boost float64) {
	lo, hi := orderPair(idA, idB)
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (a:Agent {id: $lo})
		 MERGE (b:Agent {id: $hi})
		 MERGE (a)-[r:KNOWS]-(b)
		 ON CREATE SET r.affinity = $boost, r.updated_at = datetime()
		 ON MATCH SET r.affinity = CASE WHEN r.affinity + $boost > 1.0 THEN 1.0 ELSE r.affinity + $boost END,
		              r.updated_at = datetime()`,
		map[string]any{"lo": lo, "hi": hi, "boost": boost})
	if err != nil {
		g.logger.Warn("record encounter failed", zap.Error(err))
	}
}

// Affinity returns the pair's current affinity, or 0 when the agents
// have never met.
func (g *RelationGraph) Affinity(ctx context.Context, idA, idB string) (float64, error) {
	lo, hi := orderPair(idA, idB)
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Agent {id: $lo})-[r:KNOWS]-(b:Agent {id: $hi})
		 RETURN r.affinity AS affinity`,
		map[string]any{"lo": lo, "hi": hi})
	if err != nil {
		return 0, fmt.Errorf("get affinity: %w", err)
	}
	if !result.Next(ctx) {
		return 0, nil
	}
	v, _ := result.Record().Get("affinity")
	affinity, _ := v.(float64)
	return affinity, nil
}

// Relations returns all ties for an agent.
func (g *RelationGraph) Relations(ctx context.Context, agentID string) ([]*Relation, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Agent {id: $id})-[r:KNOWS]-(b:Agent)
		 RETURN b.id AS other, r.affinity AS affinity`,
		map[string]any{"id": agentID})
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}

	var relations []*Relation
	for result.Next(ctx) {
		rec := result.Record()
		other, _ := rec.Get("other")
		affinity, _ := rec.Get("affinity")
		otherID, _ := other.(string)
		score, _ := affinity.(float64)
		lo, hi := orderPair(agentID, otherID)
		relations = append(relations, &Relation{AgentA: lo, AgentB: hi, Affinity: score})
	}
	return relations, nil
}

// Decay lowers every affinity a little. Called once per tick.
func (g *RelationGraph) Decay(ctx context.Context) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MATCH ()-[r:KNOWS]-()
		 WHERE r.affinity > 0
		 SET r.affinity = CASE WHEN r.affinity - $decay < 0 THEN 0 ELSE r.affinity - $decay END`,
		map[string]any{"decay": g.decayRate})
	if err != nil {
		g.logger.Warn("relation decay failed", zap.Error(err))
	}
}
