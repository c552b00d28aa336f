package lastfm

import (
	"errors"
	"net/http"
	"time"
)

// Config holds client configuration. Only the API key and secret are
// required.
type Config struct {
	APIKey    string
	APISecret string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// BaseURL defaults to DefaultBaseURL; tests point it at a fake.
	BaseURL   string
	UserAgent string
	// MaxRetries bounds attempts per call (default 3).
	MaxRetries int
	// RetryBackoff is the first delay between attempts, doubled each
	// time up to 30s (default 1s).
	RetryBackoff time.Duration
	Logger       Logger
}

// Logger receives debug output when set.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Client talks to the Last.fm API. It is safe for concurrent use.
type Client struct {
	apiKey      string
	apiSecret   string
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	maxRetries  int
	baseBackoff time.Duration
	logger      Logger

	user *UserService
}

const (
	// DefaultBaseURL is the Last.fm API 2.0 endpoint.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	defaultUserAgent  = "listenlog/1.0"
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// NewClient returns a client for cfg.
func NewClient(cfg Config) (*Client, error) {
	switch {
	case cfg.APIKey == "":
		return nil, errors.New("lastfm: APIKey is required")
	case cfg.APISecret == "":
		return nil, errors.New("lastfm: APISecret is required")
	}

	c := &Client{
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		httpClient:  cfg.HTTPClient,
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
		logger:      cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.baseBackoff <= 0 {
		c.baseBackoff = defaultBackoff
	}
	c.user = &UserService{client: c}

	return c, nil
}

// User returns the user.* methods.
func (c *Client) User() *UserService {
	return c.user
}

func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
