package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/collector"
)

var (
	collectorAddr      string
	collectorDB        string
	collectorRetention time.Duration
)

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run the collector that stores forwarded batches",
	Long: `Run the HTTP collector that fetch, serve and daemon forward pages to.

Each POST /submit/<endpoint> stores one JSON array as a batch in SQLite.
Stored batches can be listed at /batches and summarized at /stats.
With --retention, batches older than the given age are removed hourly.`,
	Args: cobra.NoArgs,
	RunE: runCollector,
}

func init() {
	rootCmd.AddCommand(collectorCmd)

	collectorCmd.Flags().StringVar(&collectorAddr, "addr", "", "Listen address (default from collector.addr)")
	collectorCmd.Flags().StringVar(&collectorDB, "db", "", "SQLite database path (default from collector.db)")
	collectorCmd.Flags().DurationVar(&collectorRetention, "retention", 0, "Remove batches older than this (0 = keep all)")
}

func runCollector(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	addr := cfg.Collector.Addr
	if collectorAddr != "" {
		addr = collectorAddr
	}
	dbPath := cfg.Collector.DB
	if collectorDB != "" {
		dbPath = collectorDB
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := collector.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()
	logger.Info().Str("db", dbPath).Msg("Using database")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if collectorRetention > 0 {
		go pruneBatches(ctx, store, collectorRetention, logger)
	}

	return collector.NewServer(store, cfg.Collector.Token, logger).Run(ctx, addr)
}

func pruneBatches(ctx context.Context, store *collector.Store, maxAge time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		deleted, err := store.Cleanup(ctx, maxAge)
		if err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Failed to prune batches")
		} else if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Dur("max_age", maxAge).Msg("Pruned old batches")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
