// Package daemon keeps the collector up to date with the Last.fm
// listening history by syncing new plays on an interval.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/metrics"
	"github.com/jfmyers9/listenlog/internal/record"
)

// Source supplies the listening history. Fetched pages are expected to
// be forwarded by the source itself.
type Source interface {
	RecentTracks(ctx context.Context, w collect.Window) collect.Result[record.PlayEvent]
}

// Config holds daemon configuration
type Config struct {
	Interval  time.Duration // How often to sync
	PageSize  int           // Plays requested per page
	StateFile string        // Path to state persistence file

	// How far back the first sync reaches; 0 fetches the whole history.
	Backfill time.Duration
}

// Daemon syncs plays newer than the saved cursor on every tick.
type Daemon struct {
	config Config
	source Source
	state  *State
	poller *Poller
	logger zerolog.Logger
	now    func() time.Time
}

// Report summarizes one sync.
type Report struct {
	Window collect.Window
	Status collect.Status
	Synced int
	Pages  int
}

// New creates a new Daemon instance
func New(cfg Config, source Source, logger zerolog.Logger) (*Daemon, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", cfg.Interval)
	}

	state, err := NewState(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create state: %w", err)
	}

	return &Daemon{
		config: cfg,
		source: source,
		state:  state,
		poller: NewPoller(cfg.Interval, logger),
		logger: logger.With().Str("component", "daemon").Logger(),
		now:    time.Now,
	}, nil
}

// State returns the persisted sync progress.
func (d *Daemon) State() SyncState {
	return d.state.Get()
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

func (d *Daemon) run(ctx context.Context) error {
	st := d.state.Get()
	d.logger.Info().
		Time("last_played_at", st.LastPlayedAt).
		Int("total_synced", st.TotalSynced).
		Msg("Starting daemon")

	return d.poller.Run(ctx, func(ctx context.Context) {
		if _, err := d.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error().Err(err).Msg("Sync failed")
		}
	})
}

// SyncOnce fetches plays newer than the cursor. The cursor only moves
// when the whole window was read: pages arrive newest first, so a
// partial read can leave a gap of older plays behind.
func (d *Daemon) SyncOnce(ctx context.Context) (Report, error) {
	w := d.window()
	res := d.source.RecentTracks(ctx, w)

	report := Report{Window: w, Status: res.Status, Synced: len(res.Records), Pages: res.Pages}

	if res.Status != collect.Complete {
		err := res.Err
		if err == nil {
			err = fmt.Errorf("sync ended %s", res.Status)
		}
		if perr := d.state.Fail(err); perr != nil {
			d.logger.Warn().Err(perr).Msg("Failed to persist state")
		}
		return report, err
	}

	at := d.now()
	if err := d.state.Advance(newest(res.Records), len(res.Records), at); err != nil {
		return report, err
	}
	metrics.RecordSyncSuccess(at)

	d.logger.Info().
		Int("synced", report.Synced).
		Int("pages", report.Pages).
		Time("from", w.From).
		Msg("Sync complete")

	return report, nil
}

func (d *Daemon) window() collect.Window {
	w := collect.Window{PageSize: d.config.PageSize}

	st := d.state.Get()
	switch {
	case !st.LastPlayedAt.IsZero():
		// Last.fm windows are inclusive and second-granular.
		w.From = st.LastPlayedAt.Add(time.Second)
	case d.config.Backfill > 0:
		w.From = d.now().Add(-d.config.Backfill).Truncate(time.Second)
	}
	return w
}

func newest(events []record.PlayEvent) time.Time {
	var t time.Time
	for _, ev := range events {
		if ev.PlayedAt.After(t) {
			t = ev.PlayedAt
		}
	}
	return t
}
