package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/tools"
)

var serveHTTPAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve listening data as tools",
	Long: `Serve the Last.fm and Spotify tools to an assistant.

By default the server speaks newline-delimited JSON-RPC on stdin and
stdout. With --http it listens for POST /mcp instead and also exposes
/healthz and /metrics.

A service whose credentials are missing or rejected is still listed;
its tools return empty results and the reason is logged at startup.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "Listen address for the HTTP transport (e.g. :8765)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fwd := newForwarder(cfg, logger)

	// Interfaces stay nil unless construction succeeded.
	var hist tools.History
	if c, err := newHistory(ctx, cfg, fwd, logger); err != nil {
		logger.Warn().Err(err).Msg("Last.fm tools unavailable")
	} else {
		hist = c
	}

	var lib tools.Library
	if c, err := newLibrary(ctx, cfg, fwd, logger); err != nil {
		logger.Warn().Err(err).Msg("Spotify tools unavailable")
	} else {
		lib = c
	}

	srv := tools.NewServer(tools.NewRegistry(hist, lib, logger), version, logger)

	if serveHTTPAddr == "" {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ServeStdio(ctx, os.Stdin, os.Stdout) }()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}

	httpSrv := &http.Server{
		Addr:              serveHTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", serveHTTPAddr).Msg("serving tools over HTTP")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
