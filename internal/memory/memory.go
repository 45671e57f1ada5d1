// Package memory provides best-effort episodic recall for agents.
// Memory is advisory context for dialogue, never a source of truth for
// state transitions; losing it degrades chat quality, not correctness.
package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/labwork/internal/embedding"
	"go.uber.org/zap"
)

// DefaultRecallK is how many memories a recall surfaces by default.
const DefaultRecallK = 2

// Index is the vector store behind the memory layer. QdrantIndex is the
// production implementation; tests stub it.
type Index interface {
	Add(ctx context.Context, id, agentID, text, recordedAt string, vector []float32) error
	Query(ctx context.Context, agentID string, vector []float32, k int) ([]string, error)
}

// Store records and recalls per-agent episodic memories.
type Store struct {
	embedder embedding.Provider
	index    Index
	logger   *zap.Logger
}

// NewStore creates a memory store over the given embedder and index.
func NewStore(embedder embedding.Provider, index Index, logger *zap.Logger) *Store {
	return &Store{embedder: embedder, index: index, logger: logger}
}

// Remember appends a memory record for the agent. It never fails the
// caller: embedding or index errors are logged and dropped.
func (s *Store) Remember(ctx context.Context, agentID, text string) {
	if s == nil || s.index == nil {
		return
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("memory write skipped, embed failed",
			zap.String("agent", agentID), zap.Error(err))
		return
	}
	id := uuid.New().String()
	recordedAt := time.Now().UTC().Format(time.RFC3339)
	if err := s.index.Add(ctx, id, agentID, text, recordedAt, vector); err != nil {
		s.logger.Warn("memory write skipped, index failed",
			zap.String("agent", agentID), zap.Error(err))
	}
}

// Recall returns up to k memory texts most similar to the query, best
// first. An unavailable store or no matches yields an empty slice;
// callers treat "no memory" as a normal case.
func (s *Store) Recall(ctx context.Context, agentID, query string, k int) []string {
	if s == nil || s.index == nil {
		return nil
	}
	if k <= 0 {
		k = DefaultRecallK
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("recall skipped, embed failed",
			zap.String("agent", agentID), zap.Error(err))
		return nil
	}
	texts, err := s.index.Query(ctx, agentID, vector, k)
	if err != nil {
		s.logger.Warn("recall skipped, index failed",
			zap.String("agent", agentID), zap.Error(err))
		return nil
	}
	return texts
}
