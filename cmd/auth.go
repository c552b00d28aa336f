package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/config"
	"github.com/jfmyers9/listenlog/internal/oauth"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Set up Last.fm and Spotify credentials",
}

var authLastFMCmd = &cobra.Command{
	Use:   "lastfm",
	Short: "Configure the Last.fm account to read",
	Long: `Configure the Last.fm account whose history listenlog reads.

You will be prompted for an API key and secret and a username. The
account is looked up with the key before anything is saved.

You can get API credentials from: https://www.last.fm/api/account/create`,
	Args: cobra.NoArgs,
	RunE: runAuthLastFM,
}

var authSpotifyCmd = &cobra.Command{
	Use:   "spotify",
	Short: "Authorize listenlog to read your Spotify library",
	Long: `Authorize listenlog against your Spotify account.

You will be prompted for the client id and secret of a Spotify app whose
redirect URI matches spotify.redirect_uri (default
http://127.0.0.1:8888/callback). A browser URL is printed; after you
approve access the token is saved to spotify.token_file and refreshed
automatically from then on.

You can create an app at: https://developer.spotify.com/dashboard`,
	Args: cobra.NoArgs,
	RunE: runAuthSpotify,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLastFMCmd, authSpotifyCmd)
}

// prompter reads answers from stdin, keeping current values on an
// empty line.
type prompter struct {
	r *bufio.Reader
	w io.Writer
}

func newPrompter() *prompter {
	return &prompter{r: bufio.NewReader(os.Stdin), w: os.Stdout}
}

func (p *prompter) ask(label, current string, secret bool) (string, error) {
	shown := current
	if secret && current != "" {
		shown = "****" + current[max(0, len(current)-4):]
	}
	if shown != "" {
		fmt.Fprintf(p.w, "%s [%s]: ", label, shown)
	} else {
		fmt.Fprintf(p.w, "%s: ", label)
	}

	line, err := p.r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	if line = strings.TrimSpace(line); line != "" {
		return line, nil
	}
	return current, nil
}

func runAuthLastFM(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := newPrompter()

	fmt.Println("Last.fm Setup")
	fmt.Println("=============")
	fmt.Println()

	if cfg.LastFM.APIKey, err = p.ask("API Key", cfg.LastFM.APIKey, true); err != nil {
		return err
	}
	if cfg.LastFM.APISecret, err = p.ask("API Secret", cfg.LastFM.APISecret, true); err != nil {
		return err
	}
	if cfg.LastFM.Username, err = p.ask("Username", cfg.LastFM.Username, false); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("\nChecking account...")
	c, err := newHistory(ctx, cfg, nil, newLogger())
	if err != nil {
		return err
	}
	profile, err := c.Profile(ctx)
	if err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\n✓ Found %s (%d plays)\n", profile.ID, profile.PlayCount)
	fmt.Printf("✓ Credentials saved to %s/config.yaml\n", config.GetConfigDir())
	return nil
}

func runAuthSpotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	p := newPrompter()

	fmt.Println("Spotify Authorization")
	fmt.Println("=====================")
	fmt.Println()

	if cfg.Spotify.ClientID, err = p.ask("Client ID", cfg.Spotify.ClientID, false); err != nil {
		return err
	}
	if cfg.Spotify.ClientSecret, err = p.ask("Client Secret", cfg.Spotify.ClientSecret, true); err != nil {
		return err
	}
	if err := config.Validate(cfg.Spotify); err != nil {
		return fmt.Errorf("spotify: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store := tokenStore(cfg)
	flow := &oauth.Flow{
		Config: spotify.OAuthConfig(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURI, nilIfEmpty(cfg.Spotify.Scopes)),
		Store:  store,
		Logger: logger,
		Prompt: func(authURL string) {
			fmt.Println("\nPlease visit this URL to authorize listenlog:")
			fmt.Printf("\n  %s\n\n", authURL)
			fmt.Println("Waiting for the browser to return...")
		},
	}
	if _, err := flow.Run(ctx); err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	c, err := newLibrary(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}

	fmt.Printf("\n✓ Authorized as %s\n", c.UserID())
	fmt.Printf("✓ Token saved to %s\n", store.Path())
	return nil
}
