// Package lastfm is a client for the read side of the Last.fm API 2.0:
// user profiles, listening history and charts.
//
// All calls take a context and return typed results. Only the API key
// is sent; none of the implemented methods need a signed session.
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:    os.Getenv("LASTFM_API_KEY"),
//	    APISecret: os.Getenv("LASTFM_API_SECRET"),
//	})
//
// Recent tracks come back newest first, one page per call. The entry
// currently playing, if any, leads the first page with NowPlaying set
// and no timestamp:
//
//	page, err := client.User().GetRecentTracks(ctx, lastfm.RecentTracksParams{
//	    User:  "rj",
//	    Limit: 200,
//	    Page:  1,
//	    From:  time.Now().Add(-24 * time.Hour),
//	})
//	for _, t := range page.Tracks {
//	    if !t.NowPlaying {
//	        fmt.Println(t.PlayedAt, t.Artist, t.Name)
//	    }
//	}
//
// Charts are selected by Period:
//
//	artists, err := client.User().GetTopArtists(ctx, lastfm.ChartParams{
//	    User:   "rj",
//	    Period: lastfm.Period3Month,
//	    Limit:  10,
//	})
//
// Failures reported by the API are *Error values. Network errors, 5xx
// responses and the temporary codes (service offline, temporarily
// unavailable, rate limit exceeded) are retried with exponential
// backoff, three attempts by default. IsNotFound and IsAuthError
// classify the rest.
//
// Implemented methods: user.getInfo, user.getRecentTracks,
// user.getTopArtists, user.getTopTracks.
package lastfm
