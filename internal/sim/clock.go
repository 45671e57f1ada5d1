package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ticker is anything driven by the simulation clock. Engine implements it.
type Ticker interface {
	Tick(ctx context.Context)
}

// Clock drives the perpetual simulation loop. The effective interval is
// base/speed; speed is live-adjustable and 0 means paused, never a
// divide-by-zero.
type Clock struct {
	base    time.Duration
	speed   float64
	running bool
	ticker  Ticker
	mu      sync.RWMutex
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// NewClock creates a clock with the given base interval and speed.
func NewClock(base time.Duration, speed float64, ticker Ticker, logger *zap.Logger) *Clock {
	return &Clock{
		base:    base,
		speed:   speed,
		running: true,
		ticker:  ticker,
		logger:  logger,
	}
}

// SetSpeed changes the multiplier. Values at or below zero pause the loop.
func (c *Clock) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
	c.logger.Info("simulation speed changed", zap.Float64("speed", speed))
}

// Speed returns the current multiplier.
func (c *Clock) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}

// SetRunning flips the run/pause flag.
func (c *Clock) SetRunning(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = on
	c.logger.Info("simulation run flag changed", zap.Bool("running", on))
}

// Running reports the run/pause flag.
func (c *Clock) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Start begins the loop in a background goroutine.
func (c *Clock) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop(ctx)
	c.logger.Info("simulation clock started",
		zap.Duration("base_interval", c.base), zap.Float64("speed", c.speed))
}

// Stop halts the loop.
func (c *Clock) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.logger.Info("simulation clock stopped")
	}
}

func (c *Clock) loop(ctx context.Context) {
	for {
		c.mu.RLock()
		speed := c.speed
		running := c.running
		base := c.base
		c.mu.RUnlock()

		wait := base
		if speed > 0 {
			wait = time.Duration(float64(base) / speed)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if !running || speed <= 0 {
			continue
		}
		c.ticker.Tick(ctx)
	}
}
