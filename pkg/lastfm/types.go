package lastfm

import (
	"time"
)

// Period selects the time span for chart methods.
type Period string

// Periods accepted by user.getTopArtists and user.getTopTracks.
const (
	PeriodOverall Period = "overall"
	Period7Day    Period = "7day"
	Period1Month  Period = "1month"
	Period3Month  Period = "3month"
	Period6Month  Period = "6month"
	Period12Month Period = "12month"
)

// Valid reports whether p is one of the periods Last.fm accepts.
func (p Period) Valid() bool {
	switch p {
	case PeriodOverall, Period7Day, Period1Month, Period3Month, Period6Month, Period12Month:
		return true
	}
	return false
}

// PageInfo carries the paging attributes Last.fm attaches to list
// responses.
type PageInfo struct {
	Page       int
	PerPage    int
	TotalPages int
	Total      int
}

// RecentTrack is one entry of a user's listening history.
type RecentTrack struct {
	Artist     string
	Name       string
	Album      string
	URL        string
	MBID       string
	NowPlaying bool      // Currently playing; has no PlayedAt
	PlayedAt   time.Time // Zero when NowPlaying is set
}

// RecentTracks is a page of user.getRecentTracks.
type RecentTracks struct {
	User   string
	Tracks []RecentTrack
	PageInfo
}

// UserInfo is the profile returned by user.getInfo.
type UserInfo struct {
	Name       string
	RealName   string
	URL        string
	Country    string
	PlayCount  int
	Registered time.Time
}

// TopArtist is one entry of user.getTopArtists.
type TopArtist struct {
	Rank      int
	Name      string
	PlayCount int
	MBID      string
	URL       string
}

// TopArtists is a page of user.getTopArtists.
type TopArtists struct {
	Artists []TopArtist
	PageInfo
}

// TopTrack is one entry of user.getTopTracks.
type TopTrack struct {
	Rank      int
	Name      string
	Artist    string
	PlayCount int
	MBID      string
	URL       string
}

// TopTracks is a page of user.getTopTracks.
type TopTracks struct {
	Tracks []TopTrack
	PageInfo
}
