package discovery

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wardlink/wardlink/internal/logger"
)

// announceSender is the slice of the transport the timers need.
type announceSender interface {
	State() TransportState
	Send(*Message) error
}

// Heartbeat re-announces the local node at a fixed cadence so peers
// keep its LastSeen fresh. Ticks while the transport is not open are
// skipped outright; there is no queuing or catch-up.
type Heartbeat struct {
	interval  time.Duration
	clock     clock.Clock
	transport announceSender
	announce  func() *Message
	logger    logger.Logger
}

// NewHeartbeat creates a heartbeat scheduler.
func NewHeartbeat(interval time.Duration, clk clock.Clock, transport announceSender,
	announce func() *Message, log logger.Logger) *Heartbeat {
	return &Heartbeat{
		interval:  interval,
		clock:     clk,
		transport: transport,
		announce:  announce,
		logger:    log,
	}
}

// Start runs the heartbeat loop until ctx is cancelled.
func (h *Heartbeat) Start(ctx context.Context) {
	h.logger.Info("Starting heartbeat with %v interval", h.interval)
	ticker := h.clock.Ticker(h.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.logger.Info("Heartbeat stopping")
				return
			case <-ticker.C:
				h.tick()
			}
		}
	}()
}

func (h *Heartbeat) tick() {
	if h.transport.State() != StateOpen {
		h.logger.Debug("Skipping heartbeat, transport is %v", h.transport.State())
		return
	}
	if err := h.transport.Send(h.announce()); err != nil {
		h.logger.Warn("Heartbeat send failed: %v", err)
	}
}
