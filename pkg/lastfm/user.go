package lastfm

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"
)

// UserService handles user.* methods.
type UserService struct {
	client *Client
}

// RecentTracksParams configures a user.getRecentTracks request.
type RecentTracksParams struct {
	User  string    // Required: Last.fm username
	Limit int       // Optional: results per page (Last.fm caps this at 200)
	Page  int       // Optional: 1-based page number
	From  time.Time // Optional: only plays at or after this instant
	To    time.Time // Optional: only plays at or before this instant
}

// ChartParams configures user.getTopArtists and user.getTopTracks.
type ChartParams struct {
	User   string // Required: Last.fm username
	Period Period // Optional: defaults to PeriodOverall on the server
	Limit  int
	Page   int
}

type pageAttrs struct {
	Page       int `xml:"page,attr"`
	PerPage    int `xml:"perPage,attr"`
	TotalPages int `xml:"totalPages,attr"`
	Total      int `xml:"total,attr"`
}

func (p pageAttrs) info() PageInfo {
	return PageInfo{Page: p.Page, PerPage: p.PerPage, TotalPages: p.TotalPages, Total: p.Total}
}

type recentTracksXML struct {
	XMLName xml.Name `xml:"recenttracks"`
	User    string   `xml:"user,attr"`
	pageAttrs
	Tracks []struct {
		NowPlaying string `xml:"nowplaying,attr"`
		Artist     string `xml:"artist"`
		Name       string `xml:"name"`
		Album      string `xml:"album"`
		URL        string `xml:"url"`
		MBID       string `xml:"mbid"`
		Date       struct {
			UTS int64 `xml:"uts,attr"`
		} `xml:"date"`
	} `xml:"track"`
}

type userInfoXML struct {
	XMLName    xml.Name `xml:"user"`
	Name       string   `xml:"name"`
	RealName   string   `xml:"realname"`
	URL        string   `xml:"url"`
	Country    string   `xml:"country"`
	PlayCount  int      `xml:"playcount"`
	Registered struct {
		Unix int64 `xml:"unixtime,attr"`
	} `xml:"registered"`
}

type topArtistsXML struct {
	XMLName xml.Name `xml:"topartists"`
	pageAttrs
	Artists []struct {
		Rank      int    `xml:"rank,attr"`
		Name      string `xml:"name"`
		PlayCount int    `xml:"playcount"`
		MBID      string `xml:"mbid"`
		URL       string `xml:"url"`
	} `xml:"artist"`
}

type topTracksXML struct {
	XMLName xml.Name `xml:"toptracks"`
	pageAttrs
	Tracks []struct {
		Rank      int    `xml:"rank,attr"`
		Name      string `xml:"name"`
		PlayCount int    `xml:"playcount"`
		MBID      string `xml:"mbid"`
		URL       string `xml:"url"`
		Artist    struct {
			Name string `xml:"name"`
		} `xml:"artist"`
	} `xml:"track"`
}

// GetInfo returns profile information for a user.
//
// Last.fm API: user.getInfo
func (s *UserService) GetInfo(ctx context.Context, user string) (*UserInfo, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidParams)
	}

	body, err := s.client.call(ctx, "user.getInfo", map[string]string{"user": user})
	if err != nil {
		return nil, err
	}

	var raw userInfoXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}

	info := &UserInfo{
		Name:      raw.Name,
		RealName:  raw.RealName,
		URL:       raw.URL,
		Country:   raw.Country,
		PlayCount: raw.PlayCount,
	}
	if raw.Registered.Unix > 0 {
		info.Registered = time.Unix(raw.Registered.Unix, 0).UTC()
	}
	return info, nil
}

// GetRecentTracks returns one page of a user's listening history,
// newest first. A track that is playing right now may appear at the
// head of the first page with NowPlaying set.
//
// Last.fm API: user.getRecentTracks
func (s *UserService) GetRecentTracks(ctx context.Context, p RecentTracksParams) (*RecentTracks, error) {
	if p.User == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidParams)
	}

	params := map[string]string{
		"user":  p.User,
		"limit": itoa(p.Limit),
		"page":  itoa(p.Page),
	}
	if !p.From.IsZero() {
		params["from"] = strconv.FormatInt(p.From.Unix(), 10)
	}
	if !p.To.IsZero() {
		params["to"] = strconv.FormatInt(p.To.Unix(), 10)
	}

	body, err := s.client.call(ctx, "user.getRecentTracks", params)
	if err != nil {
		return nil, err
	}

	var raw recentTracksXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse recent tracks: %w", err)
	}

	out := &RecentTracks{
		User:     raw.User,
		Tracks:   make([]RecentTrack, 0, len(raw.Tracks)),
		PageInfo: raw.info(),
	}
	for _, t := range raw.Tracks {
		track := RecentTrack{
			Artist:     t.Artist,
			Name:       t.Name,
			Album:      t.Album,
			URL:        t.URL,
			MBID:       t.MBID,
			NowPlaying: t.NowPlaying == "true",
		}
		if !track.NowPlaying && t.Date.UTS > 0 {
			track.PlayedAt = time.Unix(t.Date.UTS, 0).UTC()
		}
		out.Tracks = append(out.Tracks, track)
	}
	return out, nil
}

// GetTopArtists returns a user's most played artists over a period.
//
// Last.fm API: user.getTopArtists
func (s *UserService) GetTopArtists(ctx context.Context, p ChartParams) (*TopArtists, error) {
	params, err := p.encode()
	if err != nil {
		return nil, err
	}

	body, err := s.client.call(ctx, "user.getTopArtists", params)
	if err != nil {
		return nil, err
	}

	var raw topArtistsXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse top artists: %w", err)
	}

	out := &TopArtists{PageInfo: raw.info(), Artists: make([]TopArtist, 0, len(raw.Artists))}
	for _, a := range raw.Artists {
		out.Artists = append(out.Artists, TopArtist{
			Rank:      a.Rank,
			Name:      a.Name,
			PlayCount: a.PlayCount,
			MBID:      a.MBID,
			URL:       a.URL,
		})
	}
	return out, nil
}

// GetTopTracks returns a user's most played tracks over a period.
//
// Last.fm API: user.getTopTracks
func (s *UserService) GetTopTracks(ctx context.Context, p ChartParams) (*TopTracks, error) {
	params, err := p.encode()
	if err != nil {
		return nil, err
	}

	body, err := s.client.call(ctx, "user.getTopTracks", params)
	if err != nil {
		return nil, err
	}

	var raw topTracksXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse top tracks: %w", err)
	}

	out := &TopTracks{PageInfo: raw.info(), Tracks: make([]TopTrack, 0, len(raw.Tracks))}
	for _, t := range raw.Tracks {
		out.Tracks = append(out.Tracks, TopTrack{
			Rank:      t.Rank,
			Name:      t.Name,
			Artist:    t.Artist.Name,
			PlayCount: t.PlayCount,
			MBID:      t.MBID,
			URL:       t.URL,
		})
	}
	return out, nil
}

func (p ChartParams) encode() (map[string]string, error) {
	if p.User == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidParams)
	}
	if p.Period != "" && !p.Period.Valid() {
		return nil, fmt.Errorf("%w: unknown period %q", ErrInvalidParams, p.Period)
	}
	return map[string]string{
		"user":   p.User,
		"period": string(p.Period),
		"limit":  itoa(p.Limit),
		"page":   itoa(p.Page),
	}, nil
}

// itoa formats positive ints and drops the rest so call omits them.
func itoa(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
