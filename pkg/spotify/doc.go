// Package spotify is a small client for the Spotify Web API.
//
// It covers the endpoints needed to read a user's library and listening
// history and to append tracks to playlists:
//
//   - GET /me, /me/tracks, /me/player/recently-played, /me/top/{type}
//   - GET /audio-features, /search
//   - POST /playlists/{id}/tracks
//
// Authentication is delegated to golang.org/x/oauth2: pass the client
// returned by oauth2.NewClient as Config.HTTPClient and the token source
// refreshes access tokens as needed.
//
//	ts := spotify.OAuthConfig(id, secret, redirect, nil).TokenSource(ctx, tok)
//	client := spotify.NewClient(spotify.Config{
//	    HTTPClient: oauth2.NewClient(ctx, ts),
//	    Limiter:    rate.NewLimiter(rate.Limit(10), 1),
//	})
//	page, err := client.Me().SavedTracks(ctx, spotify.PageParams{Limit: 50})
//
// Requests answered with 429 or 5xx are retried up to Config.MaxRetries
// times, honoring Retry-After. Other failures are returned as *Error.
package spotify
