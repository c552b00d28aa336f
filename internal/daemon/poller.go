package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Poller runs a task at regular intervals
type Poller struct {
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller creates a new Poller instance
func NewPoller(interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run calls task once immediately and then on every tick.
// Blocks until context is cancelled
func (p *Poller) Run(ctx context.Context, task func(context.Context)) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Msg("Starting poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	task(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
			// A tick that lands as the context ends is dropped.
			if ctx.Err() != nil {
				continue
			}
			task(ctx)
		}
	}
}
