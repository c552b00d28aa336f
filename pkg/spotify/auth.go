package spotify

import (
	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"
)

// Scopes needed to read the library, history and top items, and to
// modify the user's playlists.
var DefaultScopes = []string{
	"user-library-read",
	"user-read-recently-played",
	"user-top-read",
	"user-read-private",
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
}

// OAuthConfig returns an authorization-code flow configuration for the
// Spotify accounts service. Nil scopes selects DefaultScopes.
func OAuthConfig(clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	if scopes == nil {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     spotifyauth.Endpoint,
	}
}
