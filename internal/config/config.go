package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when a service section lacks a
// required credential.
var ErrMissingCredentials = errors.New("missing credentials")

// ErrInvalid is returned for values that are present but malformed.
var ErrInvalid = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	// Width the now command pads or scrolls its output to (0 = no padding)
	OutputWidth int

	LastFM    LastFMConfig
	Spotify   SpotifyConfig
	Forward   ForwardConfig
	Collector CollectorConfig
	Daemon    DaemonConfig
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey    string `validate:"required"`
	APISecret string `validate:"required"`
	Username  string `validate:"required"`
	BaseURL   string `validate:"omitempty,url"` // API root override
}

// SpotifyConfig holds Spotify application credentials and session
// settings.
type SpotifyConfig struct {
	ClientID          string   `validate:"required"`
	ClientSecret      string   `validate:"required"`
	RedirectURI       string   `validate:"required,url"`
	TokenFile         string   // Cached OAuth token
	Scopes            []string // Nil selects the default scopes
	RequestsPerSecond float64  `validate:"gte=0"` // 0 means unlimited
	BaseURL           string   `validate:"omitempty,url"`
}

// ForwardConfig configures delivery of fetched pages to a collector.
type ForwardConfig struct {
	URL             string        `validate:"omitempty,url"`
	Token           string
	Timeout         time.Duration `validate:"gte=0"`
	BreakerFailures int
}

// CollectorConfig configures the collector server.
type CollectorConfig struct {
	Addr  string `validate:"required"`
	DB    string `validate:"required"`
	Token string // Bearer token submitters must present; empty allows all
}

// DaemonConfig configures the history sync daemon.
type DaemonConfig struct {
	Interval  time.Duration `validate:"gte=0"`
	PageSize  int           `validate:"gte=1,lte=200"`
	StateFile string
	Backfill  time.Duration `validate:"gte=0"` // First sync reach; 0 = whole history
}

// envAliases maps config keys to the environment names used by
// earlier deployments of the collector scripts.
var envAliases = map[string]string{
	"lastfm.api_key":        "LASTFM_API_KEY",
	"lastfm.api_secret":     "LASTFM_API_SECRET",
	"lastfm.username":       "LASTFM_USERNAME",
	"spotify.client_id":     "SPOTIPY_CLIENT_ID",
	"spotify.client_secret": "SPOTIPY_CLIENT_SECRET",
	"spotify.redirect_uri":  "SPOTIPY_REDIRECT_URI",
	"forward.url":           "FASTMCP_SERVER_URL",
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	// A missing .env is normal; values may come from the environment.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("LISTENLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := "LISTENLOG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &Config{
		OutputWidth: v.GetInt("output_width"),
		LastFM: LastFMConfig{
			APIKey:    v.GetString("lastfm.api_key"),
			APISecret: v.GetString("lastfm.api_secret"),
			Username:  v.GetString("lastfm.username"),
			BaseURL:   v.GetString("lastfm.base_url"),
		},
		Spotify: SpotifyConfig{
			ClientID:          v.GetString("spotify.client_id"),
			ClientSecret:      v.GetString("spotify.client_secret"),
			RedirectURI:       v.GetString("spotify.redirect_uri"),
			TokenFile:         expandHome(v.GetString("spotify.token_file")),
			Scopes:            v.GetStringSlice("spotify.scopes"),
			RequestsPerSecond: v.GetFloat64("spotify.requests_per_second"),
			BaseURL:           v.GetString("spotify.base_url"),
		},
		Forward: ForwardConfig{
			URL:             v.GetString("forward.url"),
			Token:           v.GetString("forward.token"),
			Timeout:         v.GetDuration("forward.timeout"),
			BreakerFailures: v.GetInt("forward.breaker_failures"),
		},
		Collector: CollectorConfig{
			Addr:  v.GetString("collector.addr"),
			DB:    expandHome(v.GetString("collector.db")),
			Token: v.GetString("collector.token"),
		},
		Daemon: DaemonConfig{
			Interval:  v.GetDuration("daemon.interval"),
			PageSize:  v.GetInt("daemon.page_size"),
			StateFile: expandHome(v.GetString("daemon.state_file")),
			Backfill:  v.GetDuration("daemon.backfill"),
		},
	}

	// Service credentials are checked when a client is built so that
	// commands which do not need them keep working.
	for _, section := range []interface{}{cfg.Forward, cfg.Collector, cfg.Daemon} {
		if err := Validate(section); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("output_width", 0)
	v.SetDefault("spotify.redirect_uri", "http://127.0.0.1:8888/callback")
	v.SetDefault("spotify.token_file", filepath.Join(configDir, "spotify_token.json"))
	v.SetDefault("forward.timeout", 30*time.Second)
	v.SetDefault("forward.breaker_failures", 5)
	v.SetDefault("collector.addr", "127.0.0.1:8700")
	v.SetDefault("collector.db", filepath.Join(configDir, "collector.db"))
	v.SetDefault("daemon.interval", 15*time.Minute)
	v.SetDefault("daemon.page_size", 200)
	v.SetDefault("daemon.state_file", filepath.Join(configDir, "state.json"))
	v.SetDefault("daemon.backfill", 7*24*time.Hour)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks a config section's struct tags. Missing required
// fields wrap ErrMissingCredentials; other failures wrap ErrInvalid.
func Validate(section interface{}) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	err := validate.Struct(section)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var missing, invalid []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Namespace())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(invalid, "; "))
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "listenlog")

	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	configFile := filepath.Join(getConfigDir(), "config.yaml")

	v.Set("output_width", c.OutputWidth)
	v.Set("lastfm.api_key", c.LastFM.APIKey)
	v.Set("lastfm.api_secret", c.LastFM.APISecret)
	v.Set("lastfm.username", c.LastFM.Username)
	v.Set("spotify.client_id", c.Spotify.ClientID)
	v.Set("spotify.client_secret", c.Spotify.ClientSecret)
	v.Set("spotify.redirect_uri", c.Spotify.RedirectURI)
	v.Set("spotify.token_file", c.Spotify.TokenFile)
	if len(c.Spotify.Scopes) > 0 {
		v.Set("spotify.scopes", c.Spotify.Scopes)
	}
	v.Set("forward.url", c.Forward.URL)
	v.Set("forward.token", c.Forward.Token)
	v.Set("forward.timeout", c.Forward.Timeout.String())
	v.Set("forward.breaker_failures", c.Forward.BreakerFailures)
	v.Set("collector.addr", c.Collector.Addr)
	v.Set("collector.db", c.Collector.DB)
	v.Set("collector.token", c.Collector.Token)
	v.Set("daemon.interval", c.Daemon.Interval.String())
	v.Set("daemon.page_size", c.Daemon.PageSize)
	v.Set("daemon.state_file", c.Daemon.StateFile)
	v.Set("daemon.backfill", c.Daemon.Backfill.String())

	return v.WriteConfigAs(configFile)
}
