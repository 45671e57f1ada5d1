package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router holds the registered providers and tries them in order:
// default first, then the fallback chain.
type Router struct {
	providers map[string]Provider
	order     []string // registration order doubles as fallback order
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates an empty provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider. The first registered becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the preferred provider.
func (r *Router) SetDefault(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = id
}

// Complete routes a completion through the default provider, falling
// back to the remaining providers in registration order.
func (r *Router) Complete(ctx context.Context, req *Request) (*Response, error) {
	r.mu.RLock()
	primary := r.providers[r.defaults]
	chain := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		if id != r.defaults {
			chain = append(chain, r.providers[id])
		}
	}
	r.mu.RUnlock()

	if primary == nil {
		return nil, fmt.Errorf("no provider registered")
	}

	resp, err := primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err // deadline spent, no point retrying elsewhere
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("provider", primary.ID()), zap.Error(err))

	for _, fb := range chain {
		resp, err = fb.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", fb.ID()), zap.Error(err))
	}
	return nil, fmt.Errorf("all providers failed: %w", err)
}
