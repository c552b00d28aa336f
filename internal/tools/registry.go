// Package tools publishes the history and library facades as named,
// schema-described tools and serves them over JSON-RPC.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/metrics"
	"github.com/jfmyers9/listenlog/internal/record"
	"github.com/jfmyers9/listenlog/pkg/lastfm"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

// ErrUnknownTool is returned by Call for a name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// History is the Last.fm facade. *history.Client implements it.
type History interface {
	RecentTracks(ctx context.Context, w collect.Window) collect.Result[record.PlayEvent]
	TopArtists(ctx context.Context, period lastfm.Period, limit int) ([]record.TopArtist, error)
	TopTracks(ctx context.Context, period lastfm.Period, limit int) ([]record.TopTrack, error)
	Profile(ctx context.Context) (record.Profile, error)
}

// Library is the Spotify facade. *library.Client implements it.
type Library interface {
	SavedTracks(ctx context.Context, pageSize, maxTracks int) collect.Result[record.LibraryTrack]
	RecentlyPlayed(ctx context.Context, pageSize, maxItems int) collect.Result[record.RecentPlay]
	AudioFeatures(ctx context.Context, ids []string) collect.Result[record.AudioFeatureSet]
	TopTracks(ctx context.Context, timeRange spotify.TimeRange, pageSize, maxItems int) collect.Result[record.TopTrack]
	TopArtists(ctx context.Context, timeRange spotify.TimeRange, pageSize, maxItems int) collect.Result[record.TopArtist]
	Search(ctx context.Context, query string, types []spotify.SearchType, limit int) (record.SearchResult, error)
	Profile(ctx context.Context) (record.Profile, error)
	AddToPlaylist(ctx context.Context, playlistID string, ids []string) (int, string, error)
}

// Call statuses recorded in metrics.
const (
	statusOK          = "ok"
	statusPartial     = "partial"
	statusFailed      = "failed"
	statusUnavailable = "unavailable"
	statusInvalid     = "invalid"
)

type handler func(ctx context.Context, args json.RawMessage) (any, string, error)

// Tool is one registered callable.
type Tool struct {
	Name        string
	Description string
	InputSchema Schema

	call  handler
	empty any // returned when the facade call panics
}

// Schema is the JSON Schema of a tool's arguments object.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one argument.
type Property struct {
	Type        string     `json:"type,omitempty"`
	Description string     `json:"description,omitempty"`
	Enum        []string   `json:"enum,omitempty"`
	Default     any        `json:"default,omitempty"`
	Minimum     *int       `json:"minimum,omitempty"`
	Maximum     *int       `json:"maximum,omitempty"`
	Items       *Property  `json:"items,omitempty"`
	AnyOf       []Property `json:"anyOf,omitempty"`
}

// Registry holds the tools in registration order.
type Registry struct {
	history History
	library Library
	logger  zerolog.Logger

	tools  []*Tool
	byName map[string]*Tool
}

// NewRegistry registers every tool. Either facade may be nil, in which
// case its tools stay listed but return empty results.
func NewRegistry(h History, l Library, logger zerolog.Logger) *Registry {
	r := &Registry{
		history: h,
		library: l,
		logger:  logger.With().Str("component", "tools").Logger(),
		byName:  make(map[string]*Tool),
	}
	r.registerLastfm()
	r.registerSpotify()

	if h == nil {
		r.logger.Warn().Msg("Last.fm client unavailable, its tools will return empty results")
	}
	if l == nil {
		r.logger.Warn().Msg("Spotify client unavailable, its tools will return empty results")
	}
	return r
}

func (r *Registry) register(t *Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

// Tools returns the registered tools.
func (r *Registry) Tools() []*Tool {
	return r.tools
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Call runs the named tool. Facade failures never surface as errors:
// they are logged and degrade to empty or partial data. Errors are
// limited to ErrUnknownTool and *ArgumentError.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	data, status, err := r.invoke(ctx, t, args)
	if err != nil {
		status = statusInvalid
	}
	metrics.RecordToolCall(name, status)

	if err != nil {
		r.logger.Warn().Err(err).Str("tool", name).Msg("tool call rejected")
		return nil, err
	}
	return data, nil
}

// invoke runs t, turning a panic anywhere below it into a failed call
// with the tool's empty value.
func (r *Registry) invoke(ctx context.Context, t *Tool, args json.RawMessage) (data any, status string, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("tool", t.Name).
				Str("panic", fmt.Sprint(p)).
				Msg("tool call panicked")
			data, status, err = t.empty, statusFailed, nil
		}
	}()
	return t.call(ctx, args)
}

// records maps a fetch result to tool data. Partial results keep
// whatever was gathered; failed ones become an empty list.
func records[R any](r *Registry, tool string, res collect.Result[R]) ([]R, string) {
	switch res.Status {
	case collect.Complete:
		return nonNil(res.Records), statusOK
	case collect.Partial:
		r.logger.Warn().Err(res.Err).Str("tool", tool).Int("records", len(res.Records)).Msg("returning partial results")
		return nonNil(res.Records), statusPartial
	default:
		r.logger.Error().Err(res.Err).Str("tool", tool).Msg("tool call failed")
		return []R{}, statusFailed
	}
}

// list maps a single-request facade call to tool data.
func list[R any](r *Registry, tool string, out []R, err error) ([]R, string) {
	if err != nil {
		r.logger.Error().Err(err).Str("tool", tool).Msg("tool call failed")
		return []R{}, statusFailed
	}
	return nonNil(out), statusOK
}

func (r *Registry) unavailable(tool, service string) string {
	r.logger.Error().Str("tool", tool).Msgf("%s client is not available", service)
	return statusUnavailable
}

func nonNil[R any](s []R) []R {
	if s == nil {
		return []R{}
	}
	return s
}

func intPtr(n int) *int { return &n }
