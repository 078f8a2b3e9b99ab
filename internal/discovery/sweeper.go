package discovery

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wardlink/wardlink/internal/logger"
)

// Sweeper periodically demotes unresponsive online nodes to offline.
// All demotions of one tick land atomically, and onChange fires at most
// once per tick regardless of how many nodes went stale.
type Sweeper struct {
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	registry *Registry
	onChange func()
	logger   logger.Logger
}

// NewSweeper creates a staleness sweeper over the given registry.
// onChange is invoked after any tick that demoted at least one node.
func NewSweeper(interval, timeout time.Duration, clk clock.Clock, registry *Registry,
	onChange func(), log logger.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		timeout:  timeout,
		clock:    clk,
		registry: registry,
		onChange: onChange,
		logger:   log,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting staleness sweep with %v interval, %v timeout", s.interval, s.timeout)
	ticker := s.clock.Ticker(s.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Staleness sweep stopping")
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Sweeper) tick() {
	cutoff := s.clock.Now().Add(-s.timeout)
	if demoted := s.registry.SweepStale(cutoff); demoted > 0 {
		s.logger.Debug("Sweep demoted %d stale node(s)", demoted)
		s.onChange()
	}
}
