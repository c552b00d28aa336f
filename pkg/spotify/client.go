package spotify

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds client configuration.
type Config struct {
	// HTTPClient performs requests. It is expected to attach the bearer
	// token, which is what oauth2.NewClient returns. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	// BaseURL defaults to the Web API; tests point it at a fake.
	BaseURL string
	// Limiter throttles outgoing requests. Nil means unlimited.
	Limiter *rate.Limiter
	// MaxRetries bounds attempts on 429 and 5xx responses (default 3).
	MaxRetries int
	// RetryBackoff is the first backoff delay, doubled per attempt,
	// used when the server sends no Retry-After (default 500ms).
	RetryBackoff time.Duration
	Logger       Logger
}

// Logger is an optional interface for logging.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Client is a Spotify Web API client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      Logger

	me        *MeService
	tracks    *TracksService
	playlists *PlaylistsService
}

const (
	// DefaultBaseURL is the Spotify Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"

	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond

	// MaxIDsPerRequest is the Web API cap on ids per batch lookup and
	// URIs per playlist mutation.
	MaxIDsPerRequest = 100
)

// NewClient constructs a Spotify client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	c := &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		limiter:     limiter,
		maxRetries:  maxRetries,
		baseBackoff: backoff,
		logger:      cfg.Logger,
	}
	c.me = &MeService{client: c}
	c.tracks = &TracksService{client: c}
	c.playlists = &PlaylistsService{client: c}
	return c
}

// Me returns the service for the current user's resources.
func (c *Client) Me() *MeService { return c.me }

// Tracks returns the track catalog service.
func (c *Client) Tracks() *TracksService { return c.tracks }

// Playlists returns the playlist service.
func (c *Client) Playlists() *PlaylistsService { return c.playlists }

func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
