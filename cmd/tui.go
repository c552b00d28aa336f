package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/tui"
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Display a terminal dashboard for the Last.fm account",
	Long: `Display a terminal dashboard showing what the Last.fm account is
playing now, its latest plays and the sync daemon's progress.

The dashboard only reads; nothing is forwarded to the collector.

Press 'r' to refresh now and 'q' to quit.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	defaults := tui.DefaultConfig()
	tuiCmd.Flags().Duration("refresh", defaults.RefreshRate, "How often to refresh")
	tuiCmd.Flags().Int("recent", defaults.RecentCount, "Number of recent plays to list")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The terminal belongs to tview; only errors reach stderr.
	logger := newLogger().Level(zerolog.ErrorLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	setupCtx, setupCancel := context.WithTimeout(ctx, 30*time.Second)
	c, err := newHistory(setupCtx, cfg, nil, logger)
	setupCancel()
	if err != nil {
		return err
	}

	refresh, _ := cmd.Flags().GetDuration("refresh")
	recent, _ := cmd.Flags().GetInt("recent")

	return tui.New(c, tui.Config{
		RefreshRate: refresh,
		RecentCount: recent,
		StateFile:   cfg.Daemon.StateFile,
	}).Run(ctx)
}
