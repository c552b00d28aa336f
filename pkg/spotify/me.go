package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// MeService handles the /me endpoints, which act on the user that
// granted the access token.
type MeService struct {
	client *Client
}

// PageParams selects an offset page. Zero values are left to the
// server defaults.
type PageParams struct {
	Limit  int
	Offset int
}

func (p PageParams) values() url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

// Profile returns the current user's profile.
func (s *MeService) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := s.client.get(ctx, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SavedTracks returns a page of the user's saved tracks, most recently
// saved first.
func (s *MeService) SavedTracks(ctx context.Context, p PageParams) (*Paging[SavedTrack], error) {
	var page Paging[SavedTrack]
	if err := s.client.get(ctx, "/me/tracks", p.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RecentlyPlayed returns up to limit plays strictly before the given
// cursor (a Unix millisecond timestamp). An empty cursor starts from
// the most recent play.
func (s *MeService) RecentlyPlayed(ctx context.Context, limit int, before string) (*CursorPaging[PlayHistory], error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before != "" {
		q.Set("before", before)
	}

	var page CursorPaging[PlayHistory]
	if err := s.client.get(ctx, "/me/player/recently-played", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// TopTracks returns a page of the user's top tracks.
func (s *MeService) TopTracks(ctx context.Context, r TimeRange, p PageParams) (*Paging[Track], error) {
	q, err := topQuery(r, p)
	if err != nil {
		return nil, err
	}
	var page Paging[Track]
	if err := s.client.get(ctx, "/me/top/tracks", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// TopArtists returns a page of the user's top artists.
func (s *MeService) TopArtists(ctx context.Context, r TimeRange, p PageParams) (*Paging[Artist], error) {
	q, err := topQuery(r, p)
	if err != nil {
		return nil, err
	}
	var page Paging[Artist]
	if err := s.client.get(ctx, "/me/top/artists", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func topQuery(r TimeRange, p PageParams) (url.Values, error) {
	q := p.values()
	if r != "" {
		if !r.Valid() {
			return nil, fmt.Errorf("spotify: unknown time range %q", r)
		}
		q.Set("time_range", string(r))
	}
	return q, nil
}
