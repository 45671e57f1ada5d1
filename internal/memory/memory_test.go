package memory

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *stubEmbedder) Dimension() int { return 3 }

type stubIndex struct {
	added    []string
	addErr   error
	results  []string
	queryErr error
	lastK    int
	lastAID  string
}

func (i *stubIndex) Add(ctx context.Context, id, agentID, text, recordedAt string, vector []float32) error {
	if i.addErr != nil {
		return i.addErr
	}
	i.added = append(i.added, text)
	return nil
}

func (i *stubIndex) Query(ctx context.Context, agentID string, vector []float32, k int) ([]string, error) {
	i.lastAID = agentID
	i.lastK = k
	if i.queryErr != nil {
		return nil, i.queryErr
	}
	return i.results, nil
}

func TestRememberStoresText(t *testing.T) {
	idx := &stubIndex{}
	s := NewStore(&stubEmbedder{}, idx, zap.NewNop())

	s.Remember(context.Background(), "a1", "the deploy failed")
	if len(idx.added) != 1 || idx.added[0] != "the deploy failed" {
		t.Fatalf("added = %v", idx.added)
	}
}

func TestRememberSwallowsEmbedError(t *testing.T) {
	idx := &stubIndex{}
	s := NewStore(&stubEmbedder{err: errors.New("model offline")}, idx, zap.NewNop())

	s.Remember(context.Background(), "a1", "anything")
	if len(idx.added) != 0 {
		t.Fatalf("write went through despite embed failure")
	}
}

func TestRememberSwallowsIndexError(t *testing.T) {
	idx := &stubIndex{addErr: errors.New("qdrant down")}
	s := NewStore(&stubEmbedder{}, idx, zap.NewNop())

	// Must not panic or propagate.
	s.Remember(context.Background(), "a1", "anything")
}

func TestRecallScopedToAgent(t *testing.T) {
	idx := &stubIndex{results: []string{"old memory"}}
	s := NewStore(&stubEmbedder{}, idx, zap.NewNop())

	got := s.Recall(context.Background(), "a7", "what happened?", 3)
	if len(got) != 1 || got[0] != "old memory" {
		t.Fatalf("got %v", got)
	}
	if idx.lastAID != "a7" {
		t.Fatalf("query scoped to %q", idx.lastAID)
	}
	if idx.lastK != 3 {
		t.Fatalf("k = %d", idx.lastK)
	}
}

func TestRecallDefaultsK(t *testing.T) {
	idx := &stubIndex{}
	s := NewStore(&stubEmbedder{}, idx, zap.NewNop())

	s.Recall(context.Background(), "a1", "q", 0)
	if idx.lastK != DefaultRecallK {
		t.Fatalf("k = %d, want %d", idx.lastK, DefaultRecallK)
	}
}

func TestRecallEmptyOnFailure(t *testing.T) {
	s := NewStore(&stubEmbedder{}, &stubIndex{queryErr: errors.New("down")}, zap.NewNop())
	if got := s.Recall(context.Background(), "a1", "q", 2); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}

	s = NewStore(&stubEmbedder{err: errors.New("down")}, &stubIndex{}, zap.NewNop())
	if got := s.Recall(context.Background(), "a1", "q", 2); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestNilStoreIsInert(t *testing.T) {
	var s *Store
	s.Remember(context.Background(), "a1", "anything")
	if got := s.Recall(context.Background(), "a1", "q", 2); got != nil {
		t.Fatalf("got %v", got)
	}
}
