package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/record"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

// SavedTracks pages through the user's saved tracks, most recently
// saved first, forwarding each page to TracksEndpoint. maxTracks of 0
// means all of them.
func (c *Client) SavedTracks(ctx context.Context, pageSize, maxTracks int) collect.Result[record.LibraryTrack] {
	w := collect.Window{PageSize: clampPageSize(pageSize), MaxItems: maxTracks}

	fetchPage := func(ctx context.Context, p collect.Page) ([]record.LibraryTrack, collect.Cursor, error) {
		page, err := c.api.Me().SavedTracks(ctx, spotify.PageParams{Limit: p.Size, Offset: p.Offset})
		if err != nil {
			return nil, collect.Cursor{}, fmt.Errorf("saved tracks offset %d: %w", p.Offset, err)
		}

		tracks := make([]record.LibraryTrack, 0, len(page.Items))
		for _, item := range page.Items {
			if rec, ok := record.FromSavedTrack(item); ok {
				tracks = append(tracks, rec)
			}
		}
		return tracks, collect.Cursor{Fetched: len(page.Items), Done: !page.HasNext()}, nil
	}

	return collect.Fetch(ctx, c.fetcher, "spotify_saved_tracks", w, fetchPage, forwardTo[record.LibraryTrack](ctx, c, TracksEndpoint))
}

// RecentlyPlayed walks the user's play history backwards with the
// before cursor, forwarding each page to RecentEndpoint.
func (c *Client) RecentlyPlayed(ctx context.Context, pageSize, maxItems int) collect.Result[record.RecentPlay] {
	w := collect.Window{PageSize: clampPageSize(pageSize), MaxItems: maxItems}

	fetchPage := func(ctx context.Context, p collect.Page) ([]record.RecentPlay, collect.Cursor, error) {
		page, err := c.api.Me().RecentlyPlayed(ctx, p.Size, p.Cursor)
		if err != nil {
			return nil, collect.Cursor{}, fmt.Errorf("recently played page %d: %w", p.Index, err)
		}

		plays := make([]record.RecentPlay, 0, len(page.Items))
		for _, item := range page.Items {
			if rec, ok := record.FromPlayHistory(item); ok {
				plays = append(plays, rec)
			}
		}
		next, more := page.NextBefore()
		return plays, collect.Cursor{Next: next, Done: !more, Fetched: len(page.Items)}, nil
	}

	return collect.Fetch(ctx, c.fetcher, "spotify_recently_played", w, fetchPage, forwardTo[record.RecentPlay](ctx, c, RecentEndpoint))
}

// TopTracks pages through the user's top tracks for timeRange.
func (c *Client) TopTracks(ctx context.Context, timeRange spotify.TimeRange, pageSize, maxItems int) collect.Result[record.TopTrack] {
	w := collect.Window{PageSize: clampPageSize(pageSize), MaxItems: maxItems}

	fetchPage := func(ctx context.Context, p collect.Page) ([]record.TopTrack, collect.Cursor, error) {
		page, err := c.api.Me().TopTracks(ctx, timeRange, spotify.PageParams{Limit: p.Size, Offset: p.Offset})
		if err != nil {
			return nil, collect.Cursor{}, fmt.Errorf("top tracks offset %d: %w", p.Offset, err)
		}
		out := make([]record.TopTrack, 0, len(page.Items))
		for i, t := range page.Items {
			out = append(out, record.FromSpotifyTopTrack(t, p.Offset+i+1))
		}
		return out, collect.Cursor{Done: !page.HasNext()}, nil
	}

	return collect.Fetch(ctx, c.fetcher, "spotify_top_tracks", w, fetchPage, nil)
}

// TopArtists pages through the user's top artists for timeRange.
func (c *Client) TopArtists(ctx context.Context, timeRange spotify.TimeRange, pageSize, maxItems int) collect.Result[record.TopArtist] {
	w := collect.Window{PageSize: clampPageSize(pageSize), MaxItems: maxItems}

	fetchPage := func(ctx context.Context, p collect.Page) ([]record.TopArtist, collect.Cursor, error) {
		page, err := c.api.Me().TopArtists(ctx, timeRange, spotify.PageParams{Limit: p.Size, Offset: p.Offset})
		if err != nil {
			return nil, collect.Cursor{}, fmt.Errorf("top artists offset %d: %w", p.Offset, err)
		}
		out := make([]record.TopArtist, 0, len(page.Items))
		for i, a := range page.Items {
			out = append(out, record.FromSpotifyArtist(a, p.Offset+i+1))
		}
		return out, collect.Cursor{Done: !page.HasNext()}, nil
	}

	return collect.Fetch(ctx, c.fetcher, "spotify_top_artists", w, fetchPage, nil)
}

// featureChunk looks up one chunk, turning a panic into an error so
// the remaining chunks still run.
func (c *Client) featureChunk(ctx context.Context, ids []string) (features []*spotify.AudioFeatures, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected panic: %v", r)
		}
	}()
	return c.api.Tracks().AudioFeatures(ctx, ids)
}

// AudioFeatures looks up audio features for ids in chunks of
// spotify.MaxIDsPerRequest, forwarding each chunk's records to
// FeaturesEndpoint. A failed chunk is logged and skipped; ids the
// catalog does not know produce no record.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) collect.Result[record.AudioFeatureSet] {
	var res collect.Result[record.AudioFeatureSet]
	var failed []error
	send := forwardTo[record.AudioFeatureSet](ctx, c, FeaturesEndpoint)

	chunks := chunk(ids, spotify.MaxIDsPerRequest)
	for i, ids := range chunks {
		res.Pages++
		features, err := c.featureChunk(ctx, ids)
		if err != nil {
			c.logger.Error().Err(err).Int("chunk", i+1).Int("chunks", len(chunks)).Msg("audio features chunk failed, skipping")
			failed = append(failed, fmt.Errorf("chunk %d: %w", i+1, err))
			continue
		}

		sets := make([]record.AudioFeatureSet, 0, len(features))
		for _, f := range features {
			if rec, ok := record.FromAudioFeatures(f); ok {
				sets = append(sets, rec)
			}
		}
		if send != nil && len(sets) > 0 {
			send(sets)
		}
		res.Records = append(res.Records, sets...)
	}

	switch {
	case len(failed) == 0:
		res.Status = collect.Complete
	case len(res.Records) > 0:
		res.Status = collect.Partial
	default:
		res.Status = collect.Failed
	}
	if len(failed) > 0 {
		res.Err = errors.Join(failed...)
	}
	return res
}

// Search runs a catalog search. limit applies per type.
func (c *Client) Search(ctx context.Context, query string, types []spotify.SearchType, limit int) (record.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return record.SearchResult{}, fmt.Errorf("search: empty query")
	}
	if len(types) == 0 {
		types = []spotify.SearchType{spotify.SearchTrack}
	}
	for _, t := range types {
		if !t.Valid() {
			return record.SearchResult{}, fmt.Errorf("search: unsupported type %q", t)
		}
	}

	res, err := c.api.Search(ctx, query, types, spotify.PageParams{Limit: clampPageSize(limit)})
	if err != nil {
		return record.SearchResult{}, fmt.Errorf("search: %w", err)
	}
	return record.FromSearch(res), nil
}

// Profile returns the authorized user's profile.
func (c *Client) Profile(ctx context.Context) (record.Profile, error) {
	user, err := c.api.Me().Profile(ctx)
	if err != nil {
		return record.Profile{}, fmt.Errorf("profile: %w", err)
	}
	return record.FromSpotifyUser(user), nil
}

// AddToPlaylist appends tracks to a playlist in chunks of
// spotify.MaxIDsPerRequest. It stops at the first failed chunk and
// reports how many tracks were added before it.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID string, ids []string) (added int, snapshot string, err error) {
	if playlistID == "" {
		return 0, "", fmt.Errorf("add to playlist: empty playlist id")
	}

	for i, ids := range chunk(ids, spotify.MaxIDsPerRequest) {
		uris := make([]string, len(ids))
		for j, id := range ids {
			uris[j] = spotify.TrackURI(id)
		}
		snapshot, err = c.api.Playlists().AddTracks(ctx, playlistID, uris)
		if err != nil {
			return added, "", fmt.Errorf("add to playlist chunk %d: %w", i+1, err)
		}
		added += len(ids)
	}
	return added, snapshot, nil
}

// chunk splits ids into runs of at most size, dropping blanks.
func chunk(ids []string, size int) [][]string {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}

	var out [][]string
	for len(clean) > size {
		out = append(out, clean[:size:size])
		clean = clean[size:]
	}
	if len(clean) > 0 {
		out = append(out, clean)
	}
	return out
}
