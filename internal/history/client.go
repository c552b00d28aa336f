// Package history exposes a Last.fm account's listening history as
// flat records.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/config"
	"github.com/jfmyers9/listenlog/internal/forward"
	"github.com/jfmyers9/listenlog/pkg/lastfm"
)

const (
	// ScrobblesEndpoint is where recent-track pages are forwarded.
	ScrobblesEndpoint = "submit/lastfm/scrobbles"

	// DefaultPageSize matches the page size the collector was built
	// around; Last.fm accepts up to MaxPageSize.
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ErrIdentityCheck is returned by New when the configured account
// cannot be looked up with the configured credentials.
var ErrIdentityCheck = errors.New("lastfm identity check failed")

// Client wraps the Last.fm API client for one account.
type Client struct {
	api      *lastfm.Client
	username string
	fwd      *forward.Forwarder
	fetcher  *collect.Fetcher
	logger   zerolog.Logger

	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithFetcher replaces the default page fetcher.
func WithFetcher(f *collect.Fetcher) Option {
	return func(c *Client) { c.fetcher = f }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New validates cfg, builds the API client and confirms that the
// account exists. fwd may be nil to disable forwarding.
func New(ctx context.Context, cfg config.LastFMConfig, fwd *forward.Forwarder, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("lastfm: %w", err)
	}

	logger = logger.With().Str("component", "history").Logger()
	c := &Client{
		username: cfg.Username,
		fwd:      fwd,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = collect.NewFetcher(logger)
	}

	api, err := lastfm.NewClient(lastfm.Config{
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		BaseURL:    cfg.BaseURL,
		HTTPClient: c.httpClient,
		Logger:     debugLogger{logger},
	})
	if err != nil {
		return nil, err
	}
	c.api = api

	if _, err := c.api.User().GetInfo(ctx, c.username); err != nil {
		switch {
		case lastfm.IsAuthError(err):
			return nil, fmt.Errorf("%w: api key rejected: %v", ErrIdentityCheck, err)
		case lastfm.IsNotFound(err):
			return nil, fmt.Errorf("%w: no such user %q", ErrIdentityCheck, c.username)
		}
		return nil, fmt.Errorf("%w: user %s: %v", ErrIdentityCheck, c.username, err)
	}
	logger.Debug().Str("user", c.username).Msg("lastfm client ready")

	return c, nil
}

// Username returns the account the client reads.
func (c *Client) Username() string {
	return c.username
}

// WithoutForwarding returns a copy of c that does not forward pages.
func (c *Client) WithoutForwarding() *Client {
	cp := *c
	cp.fwd = nil
	return &cp
}

// debugLogger adapts zerolog to the SDK logger interface.
type debugLogger struct {
	l zerolog.Logger
}

func (d debugLogger) Debugf(format string, args ...interface{}) {
	d.l.Debug().Msgf(format, args...)
}
