package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/config"
	"github.com/jfmyers9/listenlog/internal/forward"
	"github.com/jfmyers9/listenlog/internal/history"
	"github.com/jfmyers9/listenlog/internal/library"
	"github.com/jfmyers9/listenlog/internal/record"
	"github.com/jfmyers9/listenlog/internal/tools"
	"github.com/jfmyers9/listenlog/pkg/lastfm"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

var (
	fetchJSON    bool
	fetchForward bool
	fetchTimeout time.Duration

	recentLimit    int
	recentMaxPages int
	recentFrom     string
	recentTo       string

	pageSize int
	maxItems int

	topSource    string
	topPeriod    string
	topTimeRange string
	topLimit     int
	topMax       int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch listening data once",
	Long: `Fetch listening data from Last.fm or Spotify and print it.

Each fetched page is also forwarded to the configured collector unless
--forward=false is given. A fetch that stops early prints what it got
and reports the error on stderr.`,
}

var fetchRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Last.fm listening history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseTimeFlag("from", recentFrom)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", recentTo)
		if err != nil {
			return err
		}
		if !from.IsZero() && !to.IsZero() && from.After(to) {
			return fmt.Errorf("--from must not be after --to")
		}

		return withHistory(func(ctx context.Context, c *history.Client) error {
			res := c.RecentTracks(ctx, collect.Window{PageSize: recentLimit, MaxPages: recentMaxPages, From: from, To: to})
			return printResult(res, []string{"PLAYED (UTC)", "ARTIST", "TITLE", "ALBUM"}, func(e record.PlayEvent) []string {
				return []string{e.DateTimeUTC, e.Artist, e.Title, e.Album}
			})
		})
	},
}

var fetchSavedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Spotify saved tracks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(ctx context.Context, c *library.Client) error {
			res := c.SavedTracks(ctx, pageSize, maxItems)
			return printResult(res, []string{"ADDED", "ID", "ARTISTS", "NAME"}, func(t record.LibraryTrack) []string {
				return []string{formatDatePtr(t.AddedAt), t.ID, joinRefs(t.Artists), t.Name}
			})
		})
	},
}

var fetchPlayedCmd = &cobra.Command{
	Use:   "played",
	Short: "Spotify recently played tracks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(ctx context.Context, c *library.Client) error {
			res := c.RecentlyPlayed(ctx, pageSize, maxItems)
			return printResult(res, []string{"PLAYED", "ID", "ARTISTS", "NAME"}, func(p record.RecentPlay) []string {
				return []string{formatDate(p.PlayedAt), p.ID, joinRefs(p.Artists), p.Name}
			})
		})
	},
}

var fetchFeaturesCmd = &cobra.Command{
	Use:   "features ID...",
	Short: "Spotify audio features for track ids",
	Long: `Fetch audio features for the given Spotify track ids. Ids may be
passed as separate arguments or as one comma separated list.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := tools.NewIDList(args...).Normalize()
		return withLibrary(func(ctx context.Context, c *library.Client) error {
			res := c.AudioFeatures(ctx, ids)
			return printResult(res, []string{"ID", "TEMPO", "ENERGY", "DANCE", "VALENCE"}, func(f record.AudioFeatureSet) []string {
				return []string{f.TrackID, ftoa(f.Tempo), ftoa(f.Energy), ftoa(f.Danceability), ftoa(f.Valence)}
			})
		})
	},
}

var fetchTopCmd = &cobra.Command{
	Use:       "top artists|tracks",
	Short:     "Top artists or tracks from Last.fm or Spotify",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"artists", "tracks"},
	RunE: func(cmd *cobra.Command, args []string) error {
		artists := args[0] == "artists"
		switch topSource {
		case "lastfm":
			period := lastfm.Period(topPeriod)
			if !period.Valid() {
				return fmt.Errorf("invalid --period %q", topPeriod)
			}
			return withHistory(func(ctx context.Context, c *history.Client) error {
				if artists {
					return printTopArtists(c.TopArtists(ctx, period, topLimit))
				}
				return printTopTracks(c.TopTracks(ctx, period, topLimit))
			})
		case "spotify":
			tr := spotify.TimeRange(topTimeRange)
			if !tr.Valid() {
				return fmt.Errorf("invalid --time-range %q", topTimeRange)
			}
			return withLibrary(func(ctx context.Context, c *library.Client) error {
				if artists {
					res := c.TopArtists(ctx, tr, topLimit, topMax)
					return printTopArtists(res.Records, res.Err)
				}
				res := c.TopTracks(ctx, tr, topLimit, topMax)
				return printTopTracks(res.Records, res.Err)
			})
		default:
			return fmt.Errorf("invalid --source %q (lastfm or spotify)", topSource)
		}
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchRecentCmd, fetchSavedCmd, fetchPlayedCmd, fetchFeaturesCmd, fetchTopCmd)

	fetchCmd.PersistentFlags().BoolVar(&fetchJSON, "json", false, "Print records as JSON")
	fetchCmd.PersistentFlags().BoolVar(&fetchForward, "forward", true, "Forward fetched pages to the collector")
	fetchCmd.PersistentFlags().DurationVar(&fetchTimeout, "timeout", 5*time.Minute, "Give up after this long")

	fetchRecentCmd.Flags().IntVar(&recentLimit, "limit", history.DefaultPageSize, "Plays per page (max 200)")
	fetchRecentCmd.Flags().IntVar(&recentMaxPages, "max-pages", 1, "Pages to fetch (0 = all)")
	fetchRecentCmd.Flags().StringVar(&recentFrom, "from", "", "Only plays at or after this time (RFC 3339, date, or unix seconds)")
	fetchRecentCmd.Flags().StringVar(&recentTo, "to", "", "Only plays at or before this time")

	for _, c := range []*cobra.Command{fetchSavedCmd, fetchPlayedCmd} {
		c.Flags().IntVar(&pageSize, "page-size", library.DefaultPageSize, "Items per request (max 50)")
		c.Flags().IntVar(&maxItems, "max", 0, "Stop after this many items (0 = all)")
	}

	fetchTopCmd.Flags().StringVar(&topSource, "source", "lastfm", "Service to ask (lastfm, spotify)")
	fetchTopCmd.Flags().StringVar(&topPeriod, "period", string(lastfm.PeriodOverall), "Last.fm period (overall, 7day, 1month, 3month, 6month, 12month)")
	fetchTopCmd.Flags().StringVar(&topTimeRange, "time-range", string(spotify.MediumTerm), "Spotify time range (short_term, medium_term, long_term)")
	fetchTopCmd.Flags().IntVar(&topLimit, "limit", 20, "Items per request")
	fetchTopCmd.Flags().IntVar(&topMax, "max", 20, "Spotify: stop after this many items")
}

// fetchEnv loads what every fetch needs. The returned context carries
// the --timeout deadline.
func fetchEnv() (context.Context, context.CancelFunc, *config.Config, zerolog.Logger, *forward.Forwarder, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, zerolog.Nop(), nil, err
	}
	logger := newLogger()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	return ctx, cancel, cfg, logger, newForwarder(cfg, logger), nil
}

func withHistory(fn func(context.Context, *history.Client) error) error {
	ctx, cancel, cfg, logger, fwd, err := fetchEnv()
	if err != nil {
		return err
	}
	defer cancel()

	c, err := newHistory(ctx, cfg, fwd, logger)
	if err != nil {
		return err
	}
	if !fetchForward {
		c = c.WithoutForwarding()
	}
	return fn(ctx, c)
}

func withLibrary(fn func(context.Context, *library.Client) error) error {
	ctx, cancel, cfg, logger, fwd, err := fetchEnv()
	if err != nil {
		return err
	}
	defer cancel()

	c, err := newLibrary(ctx, cfg, fwd, logger)
	if err != nil {
		return err
	}
	if !fetchForward {
		c = c.WithoutForwarding()
	}
	return fn(ctx, c)
}

// printResult prints whatever was fetched. Only a fetch that produced
// nothing fails the command.
func printResult[R any](res collect.Result[R], headers []string, row func(R) []string) error {
	if err := printRecords(res.Records, headers, row); err != nil {
		return err
	}

	switch res.Status {
	case collect.Partial:
		fmt.Fprintf(os.Stderr, "warning: fetch stopped early after %d records: %v\n", len(res.Records), res.Err)
	case collect.Failed:
		return res.Err
	}
	return nil
}

func printRecords[R any](records []R, headers []string, row func(R) []string) error {
	if records == nil {
		records = []R{}
	}
	if fetchJSON {
		return writeJSON(os.Stdout, records)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, row(r))
	}
	return writeTable(os.Stdout, headers, rows)
}

func printTopArtists(top []record.TopArtist, err error) error {
	if perr := printRecords(top, []string{"#", "PLAYS/POP", "NAME"}, func(a record.TopArtist) []string {
		return []string{strconv.Itoa(a.Rank), strconv.Itoa(max(a.PlayCount, a.Popularity)), a.Name}
	}); perr != nil {
		return perr
	}
	return err
}

func printTopTracks(top []record.TopTrack, err error) error {
	if perr := printRecords(top, []string{"#", "PLAYS/POP", "ARTIST", "NAME"}, func(t record.TopTrack) []string {
		return []string{strconv.Itoa(t.Rank), strconv.Itoa(max(t.PlayCount, t.Popularity)), t.Artist, t.Name}
	}); perr != nil {
		return perr
	}
	return err
}

// parseTimeFlag accepts RFC 3339, a bare date (UTC midnight) or unix
// seconds.
func parseTimeFlag(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid --%s %q", name, s)
}

func joinRefs(refs []record.Ref) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateTime)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
