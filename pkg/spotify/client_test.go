package spotify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/jfmyers9/listenlog/pkg/spotify"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *spotify.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return spotify.NewClient(spotify.Config{
		HTTPClient:   server.Client(),
		BaseURL:      server.URL,
		RetryBackoff: time.Millisecond,
	})
}

func TestMe_SavedTracks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/tracks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("expected limit=2, got %q", got)
		}
		if got := r.URL.Query().Get("offset"); got != "4" {
			t.Errorf("expected offset=4, got %q", got)
		}
		_, _ = io.WriteString(w, `{
			"href": "x", "limit": 2, "offset": 4, "total": 7,
			"next": "https://api.spotify.com/v1/me/tracks?offset=6&limit=2",
			"items": [
				{"added_at": "2024-03-01T10:00:00Z", "track": {
					"id": "t1", "name": "Cherry-Coloured Funk", "duration_ms": 192000, "popularity": 55,
					"external_urls": {"spotify": "https://open.spotify.com/track/t1"},
					"artists": [{"id": "a1", "name": "Cocteau Twins"}],
					"album": {"id": "al1", "name": "Heaven or Las Vegas"}}},
				{"added_at": "2024-02-01T10:00:00Z", "track": null}
			]}`)
	})

	page, err := client.Me().SavedTracks(context.Background(), spotify.PageParams{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.HasNext() {
		t.Error("expected another page")
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}

	first := page.Items[0]
	if first.Track == nil || first.Track.ID != "t1" || first.Track.Album.Name != "Heaven or Las Vegas" {
		t.Errorf("unexpected track: %+v", first.Track)
	}
	if !first.AddedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected added_at %v", first.AddedAt)
	}
	if page.Items[1].Track != nil {
		t.Error("expected nil track for removed item")
	}
}

func TestMe_RecentlyPlayed_Cursor(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCursor string
		wantMore   bool
	}{
		{
			name:       "more pages",
			body:       `{"items": [], "next": "https://api.spotify.com/v1/me/player/recently-played?before=1700", "cursors": {"after": "1800", "before": "1700"}}`,
			wantCursor: "1700",
			wantMore:   true,
		},
		{
			name: "last page",
			body: `{"items": [], "next": null, "cursors": null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("before"); got != "1900" {
					t.Errorf("expected before=1900, got %q", got)
				}
				_, _ = io.WriteString(w, tt.body)
			})

			page, err := client.Me().RecentlyPlayed(context.Background(), 50, "1900")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			cursor, more := page.NextBefore()
			if cursor != tt.wantCursor || more != tt.wantMore {
				t.Errorf("NextBefore() = %q, %v; want %q, %v", cursor, more, tt.wantCursor, tt.wantMore)
			}
		})
	}
}

func TestMe_TopTracks_RejectsUnknownRange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent")
	})

	if _, err := client.Me().TopTracks(context.Background(), "forever", spotify.PageParams{}); err == nil {
		t.Fatal("expected error for unknown time range")
	}
}

func TestTracks_AudioFeatures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "t1,bogus" {
			t.Errorf("expected ids=t1,bogus, got %q", got)
		}
		_, _ = io.WriteString(w, `{"audio_features": [
			{"id": "t1", "danceability": 0.5, "energy": 0.8, "key": 5, "mode": 1, "tempo": 120.5, "time_signature": 4},
			null
		]}`)
	})

	features, err := client.Tracks().AudioFeatures(context.Background(), []string{"t1", "bogus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("expected 2 positional entries, got %d", len(features))
	}
	if features[0] == nil || features[0].Tempo != 120.5 || features[0].Key != 5 {
		t.Errorf("unexpected features: %+v", features[0])
	}
	if features[1] != nil {
		t.Error("expected nil entry for unknown id")
	}
}

func TestTracks_AudioFeatures_TooManyIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent")
	})

	ids := make([]string, spotify.MaxIDsPerRequest+1)
	if _, err := client.Tracks().AudioFeatures(context.Background(), ids); !errors.Is(err, spotify.ErrTooManyIDs) {
		t.Errorf("expected ErrTooManyIDs, got %v", err)
	}
}

func TestPlaylists_AddTracks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/playlists/pl1/tracks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		var body struct {
			URIs []string `json:"uris"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if strings.Join(body.URIs, " ") != "spotify:track:a spotify:track:b" {
			t.Errorf("unexpected uris %v", body.URIs)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"snapshot_id": "snap-2"}`)
	})

	snap, err := client.Playlists().AddTracks(context.Background(), "pl1",
		[]string{spotify.TrackURI("a"), spotify.TrackURI("b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != "snap-2" {
		t.Errorf("expected snapshot snap-2, got %q", snap)
	}
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "slowdive" || q.Get("type") != "artist,track" || q.Get("limit") != "5" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, `{
			"artists": {"items": [{"id": "a1", "name": "Slowdive", "genres": ["shoegaze"], "popularity": 60}], "total": 1},
			"tracks": {"items": [{"id": "t1", "name": "Alison", "artists": [{"id": "a1", "name": "Slowdive"}]}], "total": 1}
		}`)
	})

	res, err := client.Search(context.Background(), "slowdive",
		[]spotify.SearchType{spotify.SearchArtist, spotify.SearchTrack}, spotify.PageParams{Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Artists == nil || len(res.Artists.Items) != 1 || res.Artists.Items[0].Genres[0] != "shoegaze" {
		t.Errorf("unexpected artists: %+v", res.Artists)
	}
	if res.Tracks == nil || res.Tracks.Items[0].Name != "Alison" {
		t.Errorf("unexpected tracks: %+v", res.Tracks)
	}
	if res.Albums != nil {
		t.Error("albums were not requested")
	}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		failStatus   int
		wantErr      bool
		wantAttempts int32
	}{
		{name: "rate limited then ok", failures: 1, failStatus: http.StatusTooManyRequests, wantAttempts: 2},
		{name: "server error then ok", failures: 2, failStatus: http.StatusBadGateway, wantAttempts: 3},
		{name: "server error exhausts retries", failures: 5, failStatus: http.StatusInternalServerError, wantErr: true, wantAttempts: 3},
		{name: "unauthorized is not retried", failures: 5, failStatus: http.StatusUnauthorized, wantErr: true, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&attempts, 1)
				if int(n) <= tt.failures {
					w.WriteHeader(tt.failStatus)
					_, _ = io.WriteString(w, `{"error": {"status": 0, "message": "nope"}}`)
					return
				}
				_, _ = io.WriteString(w, `{"id": "me"}`)
			})

			user, err := client.Me().Profile(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var spErr *spotify.Error
				if !errors.As(err, &spErr) || spErr.Status != tt.failStatus {
					t.Errorf("expected *spotify.Error with status %d, got %v", tt.failStatus, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if user.ID != "me" {
					t.Errorf("expected id me, got %q", user.ID)
				}
			}
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("expected %d attempts, got %d", tt.wantAttempts, got)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error": {"status": 403, "message": "Insufficient client scope"}}`)
	})

	_, err := client.Me().Profile(context.Background())
	var spErr *spotify.Error
	if !errors.As(err, &spErr) {
		t.Fatalf("expected *spotify.Error, got %v", err)
	}
	if spErr.Message != "Insufficient client scope" {
		t.Errorf("unexpected message %q", spErr.Message)
	}
	if spotify.IsUnauthorized(err) {
		t.Error("403 is not unauthorized")
	}
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = io.WriteString(w, `{}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := client.Me().Profile(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
