package spotify

import "time"

// Paging is an offset-paged list.
type Paging[T any] struct {
	Href     string  `json:"href"`
	Items    []T     `json:"items"`
	Limit    int     `json:"limit"`
	Next     *string `json:"next"`
	Offset   int     `json:"offset"`
	Previous *string `json:"previous"`
	Total    int     `json:"total"`
}

// HasNext reports whether the server advertised another page.
func (p *Paging[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// CursorPaging is a cursor-paged list, used by recently played.
type CursorPaging[T any] struct {
	Href    string   `json:"href"`
	Items   []T      `json:"items"`
	Limit   int      `json:"limit"`
	Next    *string  `json:"next"`
	Cursors *Cursors `json:"cursors"`
	Total   int      `json:"total"`
}

// Cursors holds the positions for cursor paging.
type Cursors struct {
	After  *string `json:"after"`
	Before *string `json:"before"`
}

// NextBefore returns the cursor for the next (older) page and whether
// there is one.
func (p *CursorPaging[T]) NextBefore() (string, bool) {
	if p.Next == nil || *p.Next == "" || p.Cursors == nil || p.Cursors.Before == nil {
		return "", false
	}
	return *p.Cursors.Before, *p.Cursors.Before != ""
}

// ExternalURLs holds known external URLs for an object.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// Image is a cover or profile image.
type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height,omitempty"`
	Width  *int   `json:"width,omitempty"`
}

// SimplifiedArtist is the artist stub embedded in tracks and albums.
type SimplifiedArtist struct {
	ExternalURLs ExternalURLs `json:"external_urls"`
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	URI          string       `json:"uri"`
}

// Artist is a full artist object.
type Artist struct {
	ExternalURLs ExternalURLs `json:"external_urls"`
	Genres       []string     `json:"genres"`
	ID           string       `json:"id"`
	Images       []Image      `json:"images"`
	Name         string       `json:"name"`
	Popularity   int          `json:"popularity"`
	URI          string       `json:"uri"`
}

// SimplifiedAlbum is the album stub embedded in tracks.
type SimplifiedAlbum struct {
	AlbumType    string             `json:"album_type"`
	Artists      []SimplifiedArtist `json:"artists"`
	ExternalURLs ExternalURLs       `json:"external_urls"`
	ID           string             `json:"id"`
	Images       []Image            `json:"images"`
	Name         string             `json:"name"`
	ReleaseDate  string             `json:"release_date"`
	URI          string             `json:"uri"`
}

// Track is a full track object.
type Track struct {
	Album        SimplifiedAlbum    `json:"album"`
	Artists      []SimplifiedArtist `json:"artists"`
	DurationMs   int                `json:"duration_ms"`
	Explicit     bool               `json:"explicit"`
	ExternalURLs ExternalURLs       `json:"external_urls"`
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Popularity   int                `json:"popularity"`
	URI          string             `json:"uri"`
	IsLocal      bool               `json:"is_local"`
}

// SavedTrack is an entry of the user's library. Track may be nil for
// tracks that have been removed from the catalog.
type SavedTrack struct {
	AddedAt time.Time `json:"added_at"`
	Track   *Track    `json:"track"`
}

// PlayHistory is an entry of the user's recently played tracks.
type PlayHistory struct {
	Track    *Track    `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}

// AudioFeatures are the acoustic attributes of a track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	URI              string  `json:"uri"`
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

// User is the current user's profile.
type User struct {
	Country      string       `json:"country"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	Followers    struct {
		Total int `json:"total"`
	} `json:"followers"`
	ID      string  `json:"id"`
	Images  []Image `json:"images"`
	Product string  `json:"product"`
	URI     string  `json:"uri"`
}

// SimplifiedPlaylist is a playlist stub as returned by search.
type SimplifiedPlaylist struct {
	Description  string       `json:"description"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Owner        struct {
		DisplayName string `json:"display_name"`
		ID          string `json:"id"`
	} `json:"owner"`
	URI string `json:"uri"`
}

// SearchResult holds one page per requested search type. Types that
// were not requested are nil.
type SearchResult struct {
	Tracks    *Paging[Track]               `json:"tracks,omitempty"`
	Artists   *Paging[Artist]              `json:"artists,omitempty"`
	Albums    *Paging[SimplifiedAlbum]     `json:"albums,omitempty"`
	Playlists *Paging[*SimplifiedPlaylist] `json:"playlists,omitempty"`
}

// TimeRange selects the affinity window for top items.
type TimeRange string

// Time ranges accepted by the top items endpoints.
const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// Valid reports whether r is one of the ranges the Web API accepts.
func (r TimeRange) Valid() bool {
	switch r {
	case ShortTerm, MediumTerm, LongTerm:
		return true
	}
	return false
}

// SearchType is an item type accepted by search.
type SearchType string

// Search types supported by this client.
const (
	SearchTrack    SearchType = "track"
	SearchArtist   SearchType = "artist"
	SearchAlbum    SearchType = "album"
	SearchPlaylist SearchType = "playlist"
)

// Valid reports whether t is a supported search type.
func (t SearchType) Valid() bool {
	switch t {
	case SearchTrack, SearchArtist, SearchAlbum, SearchPlaylist:
		return true
	}
	return false
}
