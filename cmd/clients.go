package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/config"
	"github.com/jfmyers9/listenlog/internal/forward"
	"github.com/jfmyers9/listenlog/internal/history"
	"github.com/jfmyers9/listenlog/internal/library"
	"github.com/jfmyers9/listenlog/internal/oauth"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newForwarder returns nil when no collector URL is configured.
func newForwarder(cfg *config.Config, logger zerolog.Logger) *forward.Forwarder {
	if cfg.Forward.URL == "" {
		return nil
	}
	return forward.New(forward.Config{
		URL:             cfg.Forward.URL,
		Token:           cfg.Forward.Token,
		Timeout:         cfg.Forward.Timeout,
		BreakerFailures: cfg.Forward.BreakerFailures,
	}, logger)
}

func newHistory(ctx context.Context, cfg *config.Config, fwd *forward.Forwarder, logger zerolog.Logger) (*history.Client, error) {
	c, err := history.New(ctx, cfg.LastFM, fwd, logger)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'listenlog auth lastfm')", err)
	}
	return c, nil
}

func tokenStore(cfg *config.Config) *oauth.FileStore {
	return oauth.NewFileStore(cfg.Spotify.TokenFile)
}

func newLibrary(ctx context.Context, cfg *config.Config, fwd *forward.Forwarder, logger zerolog.Logger) (*library.Client, error) {
	if err := config.Validate(cfg.Spotify); err != nil {
		return nil, fmt.Errorf("spotify: %w (run 'listenlog auth spotify')", err)
	}

	oc := spotify.OAuthConfig(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURI, nilIfEmpty(cfg.Spotify.Scopes))
	ts, err := oauth.TokenSource(ctx, oc, tokenStore(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("spotify: %w (run 'listenlog auth spotify')", err)
	}

	return library.New(ctx, cfg.Spotify, ts, fwd, logger)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
