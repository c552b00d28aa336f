// Package oauth runs the Spotify authorization-code login and keeps
// the resulting token on disk.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by FileStore.Load when nothing has been saved.
var ErrNoToken = errors.New("no saved token")

// FileStore keeps one token as JSON in a file readable only by the
// owner.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the saved token.
func (s *FileStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return &tok, nil
}

// Save writes tok atomically.
func (s *FileStore) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// TokenSource returns a source that starts from the saved token,
// refreshes it through cfg when it expires and writes refreshed
// tokens back to the store.
func TokenSource(ctx context.Context, cfg *oauth2.Config, store *FileStore, logger zerolog.Logger) (oauth2.TokenSource, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &persistingSource{
		base:   cfg.TokenSource(ctx, tok),
		store:  store,
		last:   tok.AccessToken,
		logger: logger.With().Str("component", "oauth").Logger(),
	}, nil
}

type persistingSource struct {
	base   oauth2.TokenSource
	store  *FileStore
	logger zerolog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.store.Save(tok); err != nil {
			p.logger.Warn().Err(err).Msg("failed to persist refreshed token")
		} else {
			p.logger.Debug().Time("expiry", tok.Expiry).Msg("refreshed token saved")
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
