package history

import (
	"context"
	"fmt"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/record"
	"github.com/jfmyers9/listenlog/pkg/lastfm"
)

// RecentTracks pages through the account's listening history, newest
// first, within w. Each page is forwarded to ScrobblesEndpoint.
// The now-playing entry is not a completed play and is skipped.
func (c *Client) RecentTracks(ctx context.Context, w collect.Window) collect.Result[record.PlayEvent] {
	w.PageSize = clampPageSize(w.PageSize)

	fetchPage := func(ctx context.Context, p collect.Page) ([]record.PlayEvent, collect.Cursor, error) {
		page, err := c.api.User().GetRecentTracks(ctx, lastfm.RecentTracksParams{
			User:  c.username,
			Limit: p.Size,
			Page:  p.Index,
			From:  p.From,
			To:    p.To,
		})
		if err != nil {
			return nil, collect.Cursor{}, fmt.Errorf("recent tracks page %d: %w", p.Index, err)
		}

		events := make([]record.PlayEvent, 0, len(page.Tracks))
		for _, t := range page.Tracks {
			if ev, ok := record.FromRecentTrack(t); ok {
				events = append(events, ev)
			}
		}
		// The now-playing entry rides on top of a full page, so it
		// does not count toward the page size.
		return events, collect.Cursor{Fetched: countPlayed(page.Tracks)}, nil
	}

	return collect.Fetch(ctx, c.fetcher, "lastfm_recent_tracks", w, fetchPage, c.forwardPage(ctx))
}

// NowPlaying returns the track the account is listening to, or nil.
func (c *Client) NowPlaying(ctx context.Context) (*record.NowPlaying, error) {
	page, err := c.api.User().GetRecentTracks(ctx, lastfm.RecentTracksParams{User: c.username, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("now playing: %w", err)
	}
	for _, t := range page.Tracks {
		if t.NowPlaying {
			return &record.NowPlaying{Artist: t.Artist, Title: t.Name, Album: t.Album, URL: t.URL}, nil
		}
	}
	return nil, nil
}

// TopArtists returns the account's most played artists over period.
func (c *Client) TopArtists(ctx context.Context, period lastfm.Period, limit int) ([]record.TopArtist, error) {
	top, err := c.api.User().GetTopArtists(ctx, lastfm.ChartParams{User: c.username, Period: period, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("top artists: %w", err)
	}
	out := make([]record.TopArtist, 0, len(top.Artists))
	for _, a := range top.Artists {
		out = append(out, record.FromLastfmTopArtist(a))
	}
	return out, nil
}

// TopTracks returns the account's most played tracks over period.
func (c *Client) TopTracks(ctx context.Context, period lastfm.Period, limit int) ([]record.TopTrack, error) {
	top, err := c.api.User().GetTopTracks(ctx, lastfm.ChartParams{User: c.username, Period: period, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("top tracks: %w", err)
	}
	out := make([]record.TopTrack, 0, len(top.Tracks))
	for _, t := range top.Tracks {
		out = append(out, record.FromLastfmTopTrack(t))
	}
	return out, nil
}

// Profile returns the account's profile.
func (c *Client) Profile(ctx context.Context) (record.Profile, error) {
	info, err := c.api.User().GetInfo(ctx, c.username)
	if err != nil {
		return record.Profile{}, fmt.Errorf("profile: %w", err)
	}
	return record.FromLastfmUser(info), nil
}

func (c *Client) forwardPage(ctx context.Context) func([]record.PlayEvent) {
	if c.fwd == nil {
		return nil
	}
	return func(events []record.PlayEvent) {
		c.fwd.Forward(ctx, ScrobblesEndpoint, events)
	}
}

func countPlayed(tracks []lastfm.RecentTrack) int {
	n := 0
	for _, t := range tracks {
		if !t.NowPlaying {
			n++
		}
	}
	return n
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
