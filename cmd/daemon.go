package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/daemon"
)

var daemonOnce bool

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep the collector current with new Last.fm plays",
	Long: `Run the sync daemon that forwards new Last.fm plays to the collector.

The daemon will:
- Fetch plays newer than the last one it delivered, every daemon.interval
- Forward each page to the collector as it arrives
- Save its progress so a restart resumes where it left off
- Retry the same window after a failed or interrupted sync
- Handle graceful shutdown on SIGINT/SIGTERM

The first sync reaches back daemon.backfill (0 = the whole history).
The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for launchd).`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved sync progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := daemon.ReadState(cfg.Daemon.StateFile)
		if err != nil {
			return err
		}

		if st.LastSyncAt.IsZero() && st.LastError == "" {
			fmt.Println("No sync has run yet.")
			return nil
		}
		fmt.Printf("Last play:    %s\n", formatDate(st.LastPlayedAt))
		fmt.Printf("Last sync:    %s\n", formatDate(st.LastSyncAt))
		fmt.Printf("Total synced: %d\n", st.TotalSynced)
		if st.LastError != "" {
			fmt.Printf("Last error:   %s\n", st.LastError)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStatusCmd)

	daemonCmd.Flags().BoolVar(&daemonOnce, "once", false, "Sync once and exit")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	fwd := newForwarder(cfg, logger)
	if fwd == nil {
		return errors.New("forward.url is not configured; the daemon has nowhere to deliver plays")
	}

	logger.Info().
		Str("version", version).
		Str("collector", cfg.Forward.URL).
		Msg("Starting listenlog daemon")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	c, err := newHistory(ctx, cfg, fwd, logger)
	cancel()
	if err != nil {
		return err
	}

	d, err := daemon.New(daemon.Config{
		Interval:  cfg.Daemon.Interval,
		PageSize:  cfg.Daemon.PageSize,
		StateFile: cfg.Daemon.StateFile,
		Backfill:  cfg.Daemon.Backfill,
	}, c, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if daemonOnce {
		report, err := d.SyncOnce(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Synced %d plays in %d pages\n", report.Synced, report.Pages)
		return nil
	}

	// Blocks until shutdown signal
	return d.Run()
}
