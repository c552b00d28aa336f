package tools

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/record"
	"github.com/jfmyers9/listenlog/pkg/lastfm"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

type fakeHistory struct {
	window collect.Window
	result collect.Result[record.PlayEvent]
	period lastfm.Period
	err    error
}

func (f *fakeHistory) RecentTracks(_ context.Context, w collect.Window) collect.Result[record.PlayEvent] {
	f.window = w
	return f.result
}

func (f *fakeHistory) TopArtists(_ context.Context, period lastfm.Period, limit int) ([]record.TopArtist, error) {
	f.period = period
	if f.err != nil {
		return nil, f.err
	}
	return []record.TopArtist{{Rank: 1, Name: "Low", PlayCount: 120}}, nil
}

func (f *fakeHistory) TopTracks(_ context.Context, period lastfm.Period, limit int) ([]record.TopTrack, error) {
	f.period = period
	return nil, f.err
}

func (f *fakeHistory) Profile(context.Context) (record.Profile, error) {
	if f.err != nil {
		return record.Profile{}, f.err
	}
	return record.Profile{Service: "lastfm", ID: "rj"}, nil
}

type fakeLibrary struct {
	ids       []string
	timeRange spotify.TimeRange
	features  collect.Result[record.AudioFeatureSet]
	addErr    error
	added     int
}

func (f *fakeLibrary) SavedTracks(context.Context, int, int) collect.Result[record.LibraryTrack] {
	return collect.Result[record.LibraryTrack]{Status: collect.Failed, Err: errors.New("boom")}
}

func (f *fakeLibrary) RecentlyPlayed(context.Context, int, int) collect.Result[record.RecentPlay] {
	return collect.Result[record.RecentPlay]{Status: collect.Complete}
}

func (f *fakeLibrary) AudioFeatures(_ context.Context, ids []string) collect.Result[record.AudioFeatureSet] {
	f.ids = ids
	return f.features
}

func (f *fakeLibrary) TopTracks(_ context.Context, tr spotify.TimeRange, _, _ int) collect.Result[record.TopTrack] {
	f.timeRange = tr
	return collect.Result[record.TopTrack]{Status: collect.Complete, Records: []record.TopTrack{{Rank: 1, Name: "Words"}}}
}

func (f *fakeLibrary) TopArtists(_ context.Context, tr spotify.TimeRange, _, _ int) collect.Result[record.TopArtist] {
	f.timeRange = tr
	return collect.Result[record.TopArtist]{Status: collect.Complete}
}

func (f *fakeLibrary) Search(_ context.Context, query string, types []spotify.SearchType, limit int) (record.SearchResult, error) {
	return record.SearchResult{Tracks: []record.LibraryTrack{{ID: "t1", Name: query}}}, nil
}

func (f *fakeLibrary) Profile(context.Context) (record.Profile, error) {
	return record.Profile{Service: "spotify", ID: "listener"}, nil
}

func (f *fakeLibrary) AddToPlaylist(_ context.Context, _ string, ids []string) (int, string, error) {
	f.ids = ids
	if f.addErr != nil {
		return f.added, "", f.addErr
	}
	return len(ids), "snap", nil
}

func call(t *testing.T, r *Registry, name, args string) (any, error) {
	t.Helper()
	return r.Call(context.Background(), name, json.RawMessage(args))
}

func TestRegistry_ListsAllTools(t *testing.T) {
	r := NewRegistry(nil, nil, zerolog.Nop())

	var names []string
	for _, tool := range r.Tools() {
		names = append(names, tool.Name)
		if tool.Description == "" || tool.InputSchema.Type != "object" {
			t.Errorf("%s is missing a description or schema", tool.Name)
		}
	}
	want := []string{
		"get_lastfm_recent_tracks",
		"get_lastfm_top_artists",
		"get_lastfm_top_tracks",
		"get_lastfm_user_info",
		"get_spotify_saved_tracks",
		"get_spotify_recently_played",
		"get_spotify_audio_features",
		"get_spotify_top_tracks",
		"get_spotify_top_artists",
		"search_spotify",
		"get_spotify_profile",
		"add_tracks_to_spotify_playlist",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("tools = %v, want %v", names, want)
	}
}

func TestRegistry_NilClientsReturnEmpty(t *testing.T) {
	r := NewRegistry(nil, nil, zerolog.Nop())

	tests := []struct {
		tool string
		args string
		want string
	}{
		{tool: "get_lastfm_recent_tracks", want: `[]`},
		{tool: "get_lastfm_top_artists", want: `[]`},
		{tool: "get_lastfm_user_info", want: `{}`},
		{tool: "get_spotify_saved_tracks", want: `[]`},
		{tool: "get_spotify_audio_features", args: `{"track_ids": ["a"]}`, want: `[]`},
		{tool: "get_spotify_profile", want: `{}`},
		{tool: "add_tracks_to_spotify_playlist", args: `{"playlist_id": "p", "track_ids": "a b"}`, want: `{"added":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			data, err := call(t, r, tt.tool, tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, _ := json.Marshal(data)
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRegistry_RecentTracksWindow(t *testing.T) {
	h := &fakeHistory{result: collect.Result[record.PlayEvent]{
		Status:  collect.Partial,
		Records: []record.PlayEvent{{Artist: "Low", Title: "Words"}},
		Err:     errors.New("page 3 failed"),
	}}
	r := NewRegistry(h, nil, zerolog.Nop())

	data, err := call(t, r, "get_lastfm_recent_tracks", `{"limit": 100, "max_pages": 2, "time_from": 1700000000, "time_to": 1700086400}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events := data.([]record.PlayEvent); len(events) != 1 {
		t.Errorf("expected the partial data, got %v", events)
	}

	want := collect.Window{
		PageSize: 100,
		MaxPages: 2,
		From:     time.Unix(1700000000, 0).UTC(),
		To:       time.Unix(1700086400, 0).UTC(),
	}
	if h.window != want {
		t.Errorf("window = %+v, want %+v", h.window, want)
	}

	if _, err := call(t, r, "get_lastfm_recent_tracks", `{"time_from": 20, "time_to": 10}`); err == nil {
		t.Error("expected error for inverted window")
	}
}

func TestRegistry_FailureDegradesToEmpty(t *testing.T) {
	h := &fakeHistory{err: errors.New("lastfm down")}
	r := NewRegistry(h, &fakeLibrary{}, zerolog.Nop())

	data, err := call(t, r, "get_lastfm_top_artists", `{"period": "3month"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := data.([]record.TopArtist); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
	if h.period != lastfm.Period3Month {
		t.Errorf("expected 3month period, got %q", h.period)
	}

	data, err = call(t, r, "get_spotify_saved_tracks", `{}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := data.([]record.LibraryTrack); len(got) != 0 {
		t.Errorf("expected empty list for failed fetch, got %v", got)
	}

	data, _ = call(t, r, "get_lastfm_user_info", ``)
	if _, ok := data.(map[string]any); !ok {
		t.Errorf("expected empty mapping, got %T", data)
	}
}

func TestRegistry_EnumValidation(t *testing.T) {
	r := NewRegistry(&fakeHistory{}, &fakeLibrary{}, zerolog.Nop())

	tests := []struct {
		tool string
		args string
	}{
		{tool: "get_lastfm_top_tracks", args: `{"period": "fortnight"}`},
		{tool: "get_spotify_top_tracks", args: `{"time_range": "all_time"}`},
		{tool: "get_spotify_top_artists", args: `{"time_range": "SHORT"}`},
		{tool: "search_spotify", args: `{"query": "x", "types": ["podcast"]}`},
		{tool: "search_spotify", args: `{"query": ""}`},
		{tool: "add_tracks_to_spotify_playlist", args: `{"track_ids": ["a"]}`},
		{tool: "get_spotify_saved_tracks", args: `{"max_tracks": "lots"}`},
	}

	for _, tt := range tests {
		t.Run(tt.tool+" "+tt.args, func(t *testing.T) {
			_, err := call(t, r, tt.tool, tt.args)
			var argErr *ArgumentError
			if !errors.As(err, &argErr) {
				t.Errorf("expected *ArgumentError, got %v", err)
			}
		})
	}
}

func TestRegistry_SpotifyDispatch(t *testing.T) {
	lib := &fakeLibrary{features: collect.Result[record.AudioFeatureSet]{
		Status:  collect.Complete,
		Records: []record.AudioFeatureSet{{TrackID: "id1"}, {TrackID: "id3"}},
	}}
	r := NewRegistry(nil, lib, zerolog.Nop())

	data, err := call(t, r, "get_spotify_audio_features", `{"track_ids": "id1,id2 id3"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(lib.ids, []string{"id1", "id2", "id3"}) {
		t.Errorf("expected ids split from string, got %q", lib.ids)
	}
	if got := data.([]record.AudioFeatureSet); len(got) != 2 {
		t.Errorf("expected 2 feature sets, got %d", len(got))
	}

	if _, err := call(t, r, "get_spotify_top_tracks", `{"time_range": "long_term"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lib.timeRange != spotify.LongTerm {
		t.Errorf("expected long_term, got %q", lib.timeRange)
	}

	data, err = call(t, r, "add_tracks_to_spotify_playlist", `{"playlist_id": "p1", "track_ids": ["a", "b"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := data.(AddTracksResult); got.Added != 2 || got.SnapshotID != "snap" {
		t.Errorf("unexpected add result %+v", got)
	}

	lib.addErr, lib.added = errors.New("forbidden"), 100
	data, _ = call(t, r, "add_tracks_to_spotify_playlist", `{"playlist_id": "p1", "track_ids": ["a"]}`)
	if got := data.(AddTracksResult); got.Added != 100 || got.SnapshotID != "" {
		t.Errorf("unexpected add result after failure %+v", got)
	}
}

func TestRegistry_EmptyIDsMakeNoCall(t *testing.T) {
	lib := &fakeLibrary{}
	r := NewRegistry(nil, lib, zerolog.Nop())

	data, err := call(t, r, "get_spotify_audio_features", `{"track_ids": " , "}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := data.([]record.AudioFeatureSet); len(got) != 0 || lib.ids != nil {
		t.Errorf("expected no lookup, got %v / %v", got, lib.ids)
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry(nil, nil, zerolog.Nop())
	if _, err := call(t, r, "get_weather", `{}`); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}
