package record

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/jfmyers9/listenlog/pkg/lastfm"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

func TestFromRecentTrack(t *testing.T) {
	tests := []struct {
		name   string
		track  lastfm.RecentTrack
		want   PlayEvent
		wantOK bool
	}{
		{
			name: "played track",
			track: lastfm.RecentTrack{
				Artist:   "Low",
				Name:     "Words",
				Album:    "I Could Live in Hope",
				PlayedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("PST", -8*3600)),
			},
			want: PlayEvent{
				Artist:       "Low",
				Title:        "Words",
				Album:        "I Could Live in Hope",
				PlayedAt:     time.Date(2024, 1, 2, 11, 4, 5, 0, time.UTC),
				TimestampUTS: 1704193445,
				DateTimeUTC:  "2024-01-02 11:04:05",
			},
			wantOK: true,
		},
		{
			name:  "now playing is skipped",
			track: lastfm.RecentTrack{Artist: "Low", Name: "Words", NowPlaying: true},
		},
		{
			name:  "missing timestamp is skipped",
			track: lastfm.RecentTrack{Artist: "Low", Name: "Words"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromRecentTrack(tt.track)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !got.PlayedAt.Equal(tt.want.PlayedAt) {
				t.Errorf("played_at = %v, want %v", got.PlayedAt, tt.want.PlayedAt)
			}
			got.PlayedAt = tt.want.PlayedAt
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromSavedTrack(t *testing.T) {
	added := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	track := &spotify.Track{
		ID:           "t1",
		Name:         "Kerosene",
		Artists:      []spotify.SimplifiedArtist{{ID: "a1", Name: "Big Black"}, {ID: "a2", Name: "Steve Albini"}},
		Album:        spotify.SimplifiedAlbum{ID: "al1", Name: "Atomizer"},
		DurationMs:   369000,
		Popularity:   40,
		ExternalURLs: spotify.ExternalURLs{Spotify: "https://open.spotify.com/track/t1"},
	}

	rec, ok := FromSavedTrack(spotify.SavedTrack{AddedAt: added, Track: track})
	if !ok {
		t.Fatal("expected saved track to map")
	}
	if rec.ID != "t1" || rec.Album.Name != "Atomizer" || len(rec.Artists) != 2 || rec.Artists[1].Name != "Steve Albini" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.AddedAt == nil || !rec.AddedAt.Equal(added) || rec.ExternalURL == "" {
		t.Errorf("unexpected added_at/url: %+v", rec)
	}

	if _, ok := FromSavedTrack(spotify.SavedTrack{AddedAt: added}); ok {
		t.Error("expected removed track to be skipped")
	}
}

func TestFromAudioFeatures(t *testing.T) {
	if _, ok := FromAudioFeatures(nil); ok {
		t.Error("expected nil features to be skipped")
	}

	rec, ok := FromAudioFeatures(&spotify.AudioFeatures{ID: "t1", Energy: 0.9, Tempo: 171.2, TimeSignature: 4})
	if !ok {
		t.Fatal("expected features to map")
	}
	if rec.TrackID != "t1" || rec.Energy != 0.9 || rec.Tempo != 171.2 || rec.TimeSignature != 4 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestFromSearch(t *testing.T) {
	res := &spotify.SearchResult{
		Artists:   &spotify.Paging[spotify.Artist]{Items: []spotify.Artist{{ID: "a1", Name: "Duster"}, {ID: "a2", Name: "Codeine"}}},
		Playlists: &spotify.Paging[*spotify.SimplifiedPlaylist]{Items: []*spotify.SimplifiedPlaylist{nil, {ID: "p1", Name: "slowcore"}}},
	}

	got := FromSearch(res)
	if len(got.Artists) != 2 || got.Artists[1].Rank != 2 || got.Artists[1].Name != "Codeine" {
		t.Errorf("unexpected artists: %+v", got.Artists)
	}
	if len(got.Playlists) != 1 || got.Playlists[0].ID != "p1" {
		t.Errorf("expected null playlist to be dropped, got %+v", got.Playlists)
	}
	if got.Tracks != nil || got.Albums != nil {
		t.Error("unrequested types should stay empty")
	}
}

func TestFromSpotifyTopTrack_NoArtists(t *testing.T) {
	got := FromSpotifyTopTrack(spotify.Track{ID: "t1", Name: "Untitled"}, 3)
	if got.Rank != 3 || got.Artist != "" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestZeroTimesAreOmitted(t *testing.T) {
	track, err := json.Marshal(FromTrack(&spotify.Track{ID: "t1", Name: "Kerosene"}))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(track), "added_at") {
		t.Errorf("expected no added_at for a catalog track, got %s", track)
	}

	profile, err := json.Marshal(FromLastfmUser(&lastfm.UserInfo{Name: "rj"}))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(profile), "registered") {
		t.Errorf("expected no registered for an unknown date, got %s", profile)
	}

	reg := time.Unix(1037793040, 0)
	p := FromLastfmUser(&lastfm.UserInfo{Name: "rj", Registered: reg})
	if p.Registered == nil || !p.Registered.Equal(reg) || p.Registered.Location() != time.UTC {
		t.Errorf("unexpected registered %v", p.Registered)
	}
}
