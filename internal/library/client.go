// Package library exposes a Spotify account's library, listening
// history and audio analysis as flat records.
package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/config"
	"github.com/jfmyers9/listenlog/internal/forward"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

// Endpoints pages and chunks are forwarded to.
const (
	TracksEndpoint   = "submit/spotify/tracks"
	RecentEndpoint   = "submit/spotify/recent"
	FeaturesEndpoint = "submit/spotify/features"
)

const (
	// DefaultPageSize is also the largest page the library endpoints
	// accept.
	DefaultPageSize = 50
	MaxPageSize     = 50
)

var (
	// ErrIdentityCheck is returned by New when the token is rejected.
	ErrIdentityCheck = errors.New("spotify identity check failed")

	// ErrNoToken is returned by New when no OAuth token is available.
	ErrNoToken = fmt.Errorf("%w: no spotify token, run `listenlog auth spotify`", config.ErrMissingCredentials)
)

// Client wraps the Spotify API client for the authorized user.
type Client struct {
	api     *spotify.Client
	user    *spotify.User
	fwd     *forward.Forwarder
	fetcher *collect.Fetcher
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithFetcher replaces the default page fetcher.
func WithFetcher(f *collect.Fetcher) Option {
	return func(c *Client) { c.fetcher = f }
}

// New validates cfg, builds an API client authorized by ts and checks
// the token against the profile endpoint. fwd may be nil to disable
// forwarding. Token refresh is left to ts.
func New(ctx context.Context, cfg config.SpotifyConfig, ts oauth2.TokenSource, fwd *forward.Forwarder, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("spotify: %w", err)
	}
	if ts == nil {
		return nil, ErrNoToken
	}

	logger = logger.With().Str("component", "library").Logger()
	c := &Client{
		fwd:    fwd,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = collect.NewFetcher(logger)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c.api = spotify.NewClient(spotify.Config{
		HTTPClient: oauth2.NewClient(ctx, ts),
		BaseURL:    cfg.BaseURL,
		Limiter:    rate.NewLimiter(limit, 1),
		Logger:     debugLogger{logger},
	})

	user, err := c.api.Me().Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityCheck, err)
	}
	c.user = user
	logger.Debug().Str("user", user.ID).Msg("spotify client ready")

	return c, nil
}

// UserID returns the authorized user's id.
func (c *Client) UserID() string {
	return c.user.ID
}

// WithoutForwarding returns a copy of c that does not forward pages.
func (c *Client) WithoutForwarding() *Client {
	cp := *c
	cp.fwd = nil
	return &cp
}

func forwardTo[R any](ctx context.Context, c *Client, endpoint string) func([]R) {
	if c.fwd == nil {
		return nil
	}
	return func(records []R) {
		c.fwd.Forward(ctx, endpoint, records)
	}
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

type debugLogger struct {
	l zerolog.Logger
}

func (d debugLogger) Debugf(format string, args ...interface{}) {
	d.l.Debug().Msgf(format, args...)
}
