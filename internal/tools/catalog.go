package tools

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/history"
	"github.com/jfmyers9/listenlog/internal/library"
	"github.com/jfmyers9/listenlog/internal/record"
)

var idListProperty = Property{
	Description: "Spotify track ids, as an array or one string separated by commas or spaces",
	AnyOf: []Property{
		{Type: "array", Items: &Property{Type: "string"}},
		{Type: "string"},
	},
}

type recentTracksArgs struct {
	Limit    int   `json:"limit"`
	MaxPages int   `json:"max_pages"`
	TimeFrom int64 `json:"time_from"`
	TimeTo   int64 `json:"time_to"`
}

type chartArgs struct {
	Period string `json:"period"`
	Limit  int    `json:"limit"`
}

func (r *Registry) registerLastfm() {
	r.register(&Tool{
		Name:  "get_lastfm_recent_tracks",
		empty: []record.PlayEvent{},
		Description: "Retrieves the recent tracks (scrobbles) for the configured Last.fm user. " +
			"Each entry has artist, title, album, timestamp_uts and datetime_utc. Returns an empty list on error.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"limit":     {Type: "integer", Description: "Results per page", Default: history.DefaultPageSize, Minimum: intPtr(1), Maximum: intPtr(history.MaxPageSize)},
				"max_pages": {Type: "integer", Description: "Maximum number of pages to retrieve; all pages when omitted", Minimum: intPtr(1)},
				"time_from": {Type: "integer", Description: "Unix timestamp; only scrobbles after this time"},
				"time_to":   {Type: "integer", Description: "Unix timestamp; only scrobbles before this time"},
			},
		},
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "get_lastfm_recent_tracks"
			var args recentTracksArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			w := collect.Window{PageSize: args.Limit, MaxPages: max(args.MaxPages, 0)}
			if args.TimeFrom > 0 {
				w.From = time.Unix(args.TimeFrom, 0).UTC()
			}
			if args.TimeTo > 0 {
				w.To = time.Unix(args.TimeTo, 0).UTC()
			}
			if !w.From.IsZero() && !w.To.IsZero() && w.From.After(w.To) {
				return nil, "", &ArgumentError{Tool: name, Arg: "time_from", Msg: "must not be after time_to"}
			}

			if r.history == nil {
				return []record.PlayEvent{}, r.unavailable(name, "Last.fm"), nil
			}
			data, status := records(r, name, r.history.RecentTracks(ctx, w))
			return data, status, nil
		},
	})

	r.register(&Tool{
		Name:        "get_lastfm_top_artists",
		empty:       []record.TopArtist{},
		Description: "Retrieves the Last.fm user's most played artists over a period, with rank and playcount.",
		InputSchema: chartSchema(),
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "get_lastfm_top_artists"
			var args chartArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			period, err := parsePeriod(name, args.Period)
			if err != nil {
				return nil, "", err
			}

			if r.history == nil {
				return []record.TopArtist{}, r.unavailable(name, "Last.fm"), nil
			}
			out, err := r.history.TopArtists(ctx, period, args.Limit)
			data, status := list(r, name, out, err)
			return data, status, nil
		},
	})

	r.register(&Tool{
		Name:        "get_lastfm_top_tracks",
		empty:       []record.TopTrack{},
		Description: "Retrieves the Last.fm user's most played tracks over a period, with rank and playcount.",
		InputSchema: chartSchema(),
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "get_lastfm_top_tracks"
			var args chartArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			period, err := parsePeriod(name, args.Period)
			if err != nil {
				return nil, "", err
			}

			if r.history == nil {
				return []record.TopTrack{}, r.unavailable(name, "Last.fm"), nil
			}
			out, err := r.history.TopTracks(ctx, period, args.Limit)
			data, status := list(r, name, out, err)
			return data, status, nil
		},
	})

	r.register(&Tool{
		Name:        "get_lastfm_user_info",
		empty:       map[string]any{},
		Description: "Retrieves the configured Last.fm user's profile: name, country, playcount and registration date.",
		InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
		call: func(ctx context.Context, _ json.RawMessage) (any, string, error) {
			const name = "get_lastfm_user_info"
			if r.history == nil {
				return map[string]any{}, r.unavailable(name, "Last.fm"), nil
			}
			return profile(ctx, r, name, r.history.Profile)
		},
	})
}

func chartSchema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"period": {Type: "string", Description: "Time span of the chart", Enum: periods, Default: periods[0]},
			"limit":  {Type: "integer", Description: "Number of entries", Default: 50, Minimum: intPtr(1)},
		},
	}
}

type savedTracksArgs struct {
	LimitPerReq int `json:"limit_per_req"`
	MaxTracks   int `json:"max_tracks"`
}

type pagedArgs struct {
	TimeRange string `json:"time_range"`
	Limit     int    `json:"limit"`
	MaxItems  int    `json:"max_items"`
}

type audioFeaturesArgs struct {
	TrackIDs IDList `json:"track_ids"`
}

type searchArgs struct {
	Query string `json:"query"`
	Types IDList `json:"types"`
	Limit int    `json:"limit"`
}

type addTracksArgs struct {
	PlaylistID string `json:"playlist_id"`
	TrackIDs   IDList `json:"track_ids"`
}

// AddTracksResult is returned by add_tracks_to_spotify_playlist.
type AddTracksResult struct {
	Added      int    `json:"added"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

func (r *Registry) registerSpotify() {
	r.register(&Tool{
		Name:  "get_spotify_saved_tracks",
		empty: []record.LibraryTrack{},
		Description: "Retrieves the current user's saved tracks (Liked Songs) from Spotify: id, name, artists, " +
			"album, added_at, duration_ms, popularity and external_url. Returns an empty list on error.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"limit_per_req": {Type: "integer", Description: "Tracks per API request", Default: library.DefaultPageSize, Minimum: intPtr(1), Maximum: intPtr(library.MaxPageSize)},
				"max_tracks":    {Type: "integer", Description: "Maximum total tracks; all when omitted", Minimum: intPtr(1)},
			},
		},
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "get_spotify_saved_tracks"
			var args savedTracksArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			if r.library == nil {
				return []record.LibraryTrack{}, r.unavailable(name, "Spotify"), nil
			}
			data, status := records(r, name, r.library.SavedTracks(ctx, args.LimitPerReq, max(args.MaxTracks, 0)))
			return data, status, nil
		},
	})

	r.register(&Tool{
		Name:        "get_spotify_recently_played",
		empty:       []record.RecentPlay{},
		Description: "Retrieves the current user's recently played Spotify tracks, newest first, with played_at.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"limit":     {Type: "integer", Description: "Plays per API request", Default: library.DefaultPageSize, Minimum: intPtr(1), Maximum: intPtr(library.MaxPageSize)},
				"max_items": {Type: "integer", Description: "Maximum total plays; all available when omitted", Minimum: intPtr(1)},
			},
		},
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "get_spotify_recently_played"
			var args pagedArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			if r.library == nil {
				return []record.RecentPlay{}, r.unavailable(name, "Spotify"), nil
			}
			data, status := records(r, name, r.library.RecentlyPlayed(ctx, args.Limit, max(args.MaxItems, 0)))
			return data, status, nil
		},
	})

	r.register(&Tool{
		Name:  "get_spotify_audio_features",
		empty: []record.AudioFeatureSet{},
		Description: "Retrieves audio features (danceability, energy, key, loudness, mode, speechiness, acousticness, " +
			"instrumentalness, liveness, valence, tempo) for Spotify track ids. Unknown ids are omitted.",
		InputSchema: Schema{
			Type:       "object",
			Properties: map[string]Property{"track_ids": idListProperty},
			Required:   []string{"track_ids"},
		},
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "get_spotify_audio_features"
			var args audioFeaturesArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			ids := args.TrackIDs.Normalize()
			if args.TrackIDs.FromString() {
				r.logger.Warn().Str("tool", name).Int("ids", len(ids)).Msg("track_ids given as a string, split into a list")
			}
			if len(ids) == 0 {
				r.logger.Warn().Str("tool", name).Msg("no track ids provided")
				return []record.AudioFeatureSet{}, statusOK, nil
			}
			if r.library == nil {
				return []record.AudioFeatureSet{}, r.unavailable(name, "Spotify"), nil
			}
			data, status := records(r, name, r.library.AudioFeatures(ctx, ids))
			return data, status, nil
		},
	})

	r.register(&Tool{
		Name:        "get_spotify_top_tracks",
		empty:       []record.TopTrack{},
		Description: "Retrieves the current user's top Spotify tracks for a time range, ranked.",
		InputSchema: topSchema(),
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "get_spotify_top_tracks"
			var args pagedArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			tr, err := parseTimeRange(name, args.TimeRange)
			if err != nil {
				return nil, "", err
			}
			if r.library == nil {
				return []record.TopTrack{}, r.unavailable(name, "Spotify"), nil
			}
			data, status := records(r, name, r.library.TopTracks(ctx, tr, args.Limit, max(args.MaxItems, 0)))
			return data, status, nil
		},
	})

	r.register(&Tool{
		Name:        "get_spotify_top_artists",
		empty:       []record.TopArtist{},
		Description: "Retrieves the current user's top Spotify artists for a time range, ranked, with genres.",
		InputSchema: topSchema(),
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "get_spotify_top_artists"
			var args pagedArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			tr, err := parseTimeRange(name, args.TimeRange)
			if err != nil {
				return nil, "", err
			}
			if r.library == nil {
				return []record.TopArtist{}, r.unavailable(name, "Spotify"), nil
			}
			data, status := records(r, name, r.library.TopArtists(ctx, tr, args.Limit, max(args.MaxItems, 0)))
			return data, status, nil
		},
	})

	r.register(&Tool{
		Name:        "search_spotify",
		empty:       record.SearchResult{},
		Description: "Searches the Spotify catalog. Returns matching tracks, artists, albums and playlists for the requested types.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query": {Type: "string", Description: "Search query"},
				"types": {
					Description: "Item types to search; track when omitted",
					AnyOf: []Property{
						{Type: "array", Items: &Property{Type: "string", Enum: searchTypes}},
						{Type: "string"},
					},
				},
				"limit": {Type: "integer", Description: "Results per type", Default: 10, Minimum: intPtr(1), Maximum: intPtr(library.MaxPageSize)},
			},
			Required: []string{"query"},
		},
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "search_spotify"
			var args searchArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			if args.Query == "" {
				return nil, "", &ArgumentError{Tool: name, Arg: "query", Msg: "must not be empty"}
			}
			types, err := parseSearchTypes(name, args.Types)
			if err != nil {
				return nil, "", err
			}
			if args.Limit == 0 {
				args.Limit = 10
			}
			if r.library == nil {
				return record.SearchResult{}, r.unavailable(name, "Spotify"), nil
			}
			res, err := r.library.Search(ctx, args.Query, types, args.Limit)
			if err != nil {
				r.logger.Error().Err(err).Str("tool", name).Msg("tool call failed")
				return record.SearchResult{}, statusFailed, nil
			}
			return res, statusOK, nil
		},
	})

	r.register(&Tool{
		Name:        "get_spotify_profile",
		empty:       map[string]any{},
		Description: "Retrieves the current Spotify user's profile: id, display name, country, followers and product.",
		InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
		call: func(ctx context.Context, _ json.RawMessage) (any, string, error) {
			const name = "get_spotify_profile"
			if r.library == nil {
				return map[string]any{}, r.unavailable(name, "Spotify"), nil
			}
			return profile(ctx, r, name, r.library.Profile)
		},
	})

	r.register(&Tool{
		Name:        "add_tracks_to_spotify_playlist",
		empty:       AddTracksResult{},
		Description: "Appends tracks to a Spotify playlist the user owns. Returns how many tracks were added and the new snapshot id.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"playlist_id": {Type: "string", Description: "Spotify playlist id"},
				"track_ids":   idListProperty,
			},
			Required: []string{"playlist_id", "track_ids"},
		},
		call: func(ctx context.Context, raw json.RawMessage) (any, string, error) {
			const name = "add_tracks_to_spotify_playlist"
			var args addTracksArgs
			if err := decodeArgs(name, raw, &args); err != nil {
				return nil, "", err
			}
			if args.PlaylistID == "" {
				return nil, "", &ArgumentError{Tool: name, Arg: "playlist_id", Msg: "must not be empty"}
			}
			ids := args.TrackIDs.Normalize()
			if len(ids) == 0 {
				r.logger.Warn().Str("tool", name).Msg("no track ids provided")
				return AddTracksResult{}, statusOK, nil
			}
			if r.library == nil {
				return AddTracksResult{}, r.unavailable(name, "Spotify"), nil
			}

			added, snapshot, err := r.library.AddToPlaylist(ctx, args.PlaylistID, ids)
			if err != nil {
				r.logger.Error().Err(err).Str("tool", name).Int("added", added).Msg("tool call failed")
				status := statusFailed
				if added > 0 {
					status = statusPartial
				}
				return AddTracksResult{Added: added}, status, nil
			}
			return AddTracksResult{Added: added, SnapshotID: snapshot}, statusOK, nil
		},
	})
}

func topSchema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"time_range": {Type: "string", Description: "Affinity window", Enum: timeRanges, Default: timeRanges[1]},
			"limit":      {Type: "integer", Description: "Items per API request", Default: library.DefaultPageSize, Minimum: intPtr(1), Maximum: intPtr(library.MaxPageSize)},
			"max_items":  {Type: "integer", Description: "Maximum total items; all available when omitted", Minimum: intPtr(1)},
		},
	}
}

// profile maps a profile lookup to tool data; a failure is an empty
// mapping.
func profile(ctx context.Context, r *Registry, tool string, fetch func(context.Context) (record.Profile, error)) (any, string, error) {
	p, err := fetch(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("tool", tool).Msg("tool call failed")
		return map[string]any{}, statusFailed, nil
	}
	return p, statusOK, nil
}

var (
	_ History = (*history.Client)(nil)
	_ Library = (*library.Client)(nil)
)
