package spotify

import (
	"context"
	"net/url"
)

// PlaylistsService handles playlist mutations.
type PlaylistsService struct {
	client *Client
}

// AddTracks appends up to MaxIDsPerRequest track URIs to a playlist
// and returns the playlist's new snapshot id.
func (s *PlaylistsService) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	if len(uris) > MaxIDsPerRequest {
		return "", ErrTooManyIDs
	}

	body := struct {
		URIs []string `json:"uris"`
	}{URIs: uris}

	var resp struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := s.client.post(ctx, "/playlists/"+url.PathEscape(playlistID)+"/tracks", body, &resp); err != nil {
		return "", err
	}
	return resp.SnapshotID, nil
}

// TrackURI returns the spotify:track URI for a track id.
func TrackURI(id string) string {
	return "spotify:track:" + id
}
