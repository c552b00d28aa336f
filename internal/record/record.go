// Package record holds the flat records produced from vendor
// responses and the mappers that build them.
package record

import (
	"time"

	"github.com/jfmyers9/listenlog/pkg/lastfm"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

// DateTimeLayout formats datetime_utc on play events.
const DateTimeLayout = "2006-01-02 15:04:05"

// PlayEvent is one listen from the Last.fm history.
type PlayEvent struct {
	Artist       string    `json:"artist"`
	Title        string    `json:"title"`
	Album        string    `json:"album,omitempty"`
	PlayedAt     time.Time `json:"played_at"`
	TimestampUTS int64     `json:"timestamp_uts"`
	DateTimeUTC  string    `json:"datetime_utc"`
}

// Ref is an id and name pair.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LibraryTrack is a track from the Spotify library.
type LibraryTrack struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Artists     []Ref     `json:"artists"`
	Album       Ref       `json:"album"`
	DurationMs  int       `json:"duration_ms"`
	Popularity  int       `json:"popularity"`
	ExternalURL string     `json:"external_url,omitempty"`
	AddedAt     *time.Time `json:"added_at,omitempty"` // Saved tracks only
}

// RecentPlay is a Spotify recently played entry.
type RecentPlay struct {
	LibraryTrack
	PlayedAt time.Time `json:"played_at"`
}

// AudioFeatureSet holds the acoustic attributes of one track.
type AudioFeatureSet struct {
	TrackID          string  `json:"track_id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	DurationMs       int     `json:"duration_ms"`
}

// TopArtist is a ranked artist from either service. Last.fm fills
// PlayCount, Spotify fills Popularity and Genres.
type TopArtist struct {
	Rank       int      `json:"rank"`
	Name       string   `json:"name"`
	ID         string   `json:"id,omitempty"`
	PlayCount  int      `json:"playcount,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// TopTrack is a ranked track from either service.
type TopTrack struct {
	Rank       int    `json:"rank"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	ID         string `json:"id,omitempty"`
	PlayCount  int    `json:"playcount,omitempty"`
	Popularity int    `json:"popularity,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Profile is a user profile from either service.
type Profile struct {
	Service     string     `json:"service"`
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name,omitempty"`
	Country     string     `json:"country,omitempty"`
	URL         string     `json:"url,omitempty"`
	PlayCount   int        `json:"playcount,omitempty"`
	Followers   int        `json:"followers,omitempty"`
	Product     string     `json:"product,omitempty"`
	Registered  *time.Time `json:"registered,omitempty"`
}

// SearchResult groups search hits by type.
type SearchResult struct {
	Tracks    []LibraryTrack `json:"tracks,omitempty"`
	Artists   []TopArtist    `json:"artists,omitempty"`
	Albums    []Ref          `json:"albums,omitempty"`
	Playlists []Ref          `json:"playlists,omitempty"`
}

// NowPlaying is the track a Last.fm user is currently listening to.
type NowPlaying struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Album  string `json:"album,omitempty"`
	URL    string `json:"url,omitempty"`
}

// FromRecentTrack maps a Last.fm history entry. It returns false for
// the now-playing entry, which has no timestamp.
func FromRecentTrack(t lastfm.RecentTrack) (PlayEvent, bool) {
	if t.NowPlaying || t.PlayedAt.IsZero() {
		return PlayEvent{}, false
	}
	at := t.PlayedAt.UTC()
	return PlayEvent{
		Artist:       t.Artist,
		Title:        t.Name,
		Album:        t.Album,
		PlayedAt:     at,
		TimestampUTS: at.Unix(),
		DateTimeUTC:  at.Format(DateTimeLayout),
	}, true
}

// FromTrack maps a Spotify track.
func FromTrack(t *spotify.Track) LibraryTrack {
	artists := make([]Ref, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, Ref{ID: a.ID, Name: a.Name})
	}
	return LibraryTrack{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     artists,
		Album:       Ref{ID: t.Album.ID, Name: t.Album.Name},
		DurationMs:  t.DurationMs,
		Popularity:  t.Popularity,
		ExternalURL: t.ExternalURLs.Spotify,
	}
}

// FromSavedTrack maps a library entry. Entries whose track was
// removed from the catalog yield false.
func FromSavedTrack(s spotify.SavedTrack) (LibraryTrack, bool) {
	if s.Track == nil {
		return LibraryTrack{}, false
	}
	rec := FromTrack(s.Track)
	rec.AddedAt = utcPtr(s.AddedAt)
	return rec, true
}

// FromPlayHistory maps a recently played entry.
func FromPlayHistory(p spotify.PlayHistory) (RecentPlay, bool) {
	if p.Track == nil {
		return RecentPlay{}, false
	}
	return RecentPlay{LibraryTrack: FromTrack(p.Track), PlayedAt: p.PlayedAt.UTC()}, true
}

// FromAudioFeatures maps a feature set. The Web API answers unknown
// ids with null, which yields false.
func FromAudioFeatures(f *spotify.AudioFeatures) (AudioFeatureSet, bool) {
	if f == nil {
		return AudioFeatureSet{}, false
	}
	return AudioFeatureSet{
		TrackID:          f.ID,
		Danceability:     f.Danceability,
		Energy:           f.Energy,
		Key:              f.Key,
		Loudness:         f.Loudness,
		Mode:             f.Mode,
		Speechiness:      f.Speechiness,
		Acousticness:     f.Acousticness,
		Instrumentalness: f.Instrumentalness,
		Liveness:         f.Liveness,
		Valence:          f.Valence,
		Tempo:            f.Tempo,
		TimeSignature:    f.TimeSignature,
		DurationMs:       f.DurationMs,
	}, true
}

// FromLastfmTopArtist maps a Last.fm chart artist.
func FromLastfmTopArtist(a lastfm.TopArtist) TopArtist {
	return TopArtist{Rank: a.Rank, Name: a.Name, ID: a.MBID, PlayCount: a.PlayCount, URL: a.URL}
}

// FromLastfmTopTrack maps a Last.fm chart track.
func FromLastfmTopTrack(t lastfm.TopTrack) TopTrack {
	return TopTrack{Rank: t.Rank, Name: t.Name, Artist: t.Artist, ID: t.MBID, PlayCount: t.PlayCount, URL: t.URL}
}

// FromSpotifyArtist maps a Spotify artist at the given 1-based rank.
func FromSpotifyArtist(a spotify.Artist, rank int) TopArtist {
	return TopArtist{
		Rank:       rank,
		Name:       a.Name,
		ID:         a.ID,
		Popularity: a.Popularity,
		Genres:     a.Genres,
		URL:        a.ExternalURLs.Spotify,
	}
}

// FromSpotifyTopTrack maps a Spotify track at the given 1-based rank.
func FromSpotifyTopTrack(t spotify.Track, rank int) TopTrack {
	var artist string
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return TopTrack{
		Rank:       rank,
		Name:       t.Name,
		Artist:     artist,
		ID:         t.ID,
		Popularity: t.Popularity,
		URL:        t.ExternalURLs.Spotify,
	}
}

// FromLastfmUser maps a Last.fm profile.
func FromLastfmUser(u *lastfm.UserInfo) Profile {
	return Profile{
		Service:     "lastfm",
		ID:          u.Name,
		DisplayName: u.RealName,
		Country:     u.Country,
		URL:         u.URL,
		PlayCount:   u.PlayCount,
		Registered:  utcPtr(u.Registered),
	}
}

// FromSpotifyUser maps a Spotify profile.
func FromSpotifyUser(u *spotify.User) Profile {
	return Profile{
		Service:     "spotify",
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Country:     u.Country,
		URL:         u.ExternalURLs.Spotify,
		Followers:   u.Followers.Total,
		Product:     u.Product,
	}
}

// FromSearch flattens a search response.
func FromSearch(r *spotify.SearchResult) SearchResult {
	var out SearchResult
	if r.Tracks != nil {
		for i := range r.Tracks.Items {
			out.Tracks = append(out.Tracks, FromTrack(&r.Tracks.Items[i]))
		}
	}
	if r.Artists != nil {
		for i, a := range r.Artists.Items {
			out.Artists = append(out.Artists, FromSpotifyArtist(a, i+1))
		}
	}
	if r.Albums != nil {
		for _, a := range r.Albums.Items {
			out.Albums = append(out.Albums, Ref{ID: a.ID, Name: a.Name})
		}
	}
	if r.Playlists != nil {
		for _, p := range r.Playlists.Items {
			// search returns null for playlists that have since been removed
			if p == nil {
				continue
			}
			out.Playlists = append(out.Playlists, Ref{ID: p.ID, Name: p.Name})
		}
	}
	return out
}

// utcPtr returns t in UTC, or nil for the zero time.
func utcPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
