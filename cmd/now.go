package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/record"
)

const defaultNowFormat = "{{.Artist}} - {{.Title}}"

// errNotPlaying makes now exit 1 without printing an error.
var errNotPlaying = errors.New("nothing playing")

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the track currently scrobbling on Last.fm",
	Long: `Display the track the Last.fm account is listening to right now.

The output is a Go template over .Artist, .Title, .Album and .URL.
With a width set, the text is padded or truncated to exactly that many
columns, or scrolled when --marquee is given. Suited to tmux status
lines.

Exit codes:
  0 - A track is playing
  1 - Nothing playing or Last.fm unreachable`,
	Args: cobra.NoArgs,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	nowCmd.Flags().StringP("format", "f", defaultNowFormat, "Output format template")
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	nowCmd.Flags().Bool("marquee", false, "Scroll text longer than the width")
	nowCmd.Flags().Int("marquee-speed", 2, "Marquee speed in characters per second")
	nowCmd.Flags().String("marquee-separator", " • ", "Text between marquee repetitions")
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	tmpl, err := template.New("now").Parse(format)
	if err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	c, err := newHistory(ctx, cfg, nil, newLogger())
	if err != nil {
		return err
	}

	track, err := c.NowPlaying(ctx)
	if err != nil {
		return err
	}
	if track == nil {
		cmd.SilenceErrors = true
		return errNotPlaying
	}

	output, err := formatNowPlaying(track, tmpl)
	if err != nil {
		return err
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}
	if marquee, _ := cmd.Flags().GetBool("marquee"); marquee {
		speed, _ := cmd.Flags().GetInt("marquee-speed")
		sep, _ := cmd.Flags().GetString("marquee-separator")
		output = marqueeText(output, width, speed, sep, time.Now())
	} else {
		output = padToWidth(output, width)
	}

	fmt.Fprintln(os.Stdout, output)
	return nil
}

func formatNowPlaying(track *record.NowPlaying, tmpl *template.Template) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, track); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// padToWidth pads or truncates text to exactly width display columns.
// Truncated text ends in "...". A width <= 0 leaves text unchanged.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	const ellipsis = "..."
	if runewidth.StringWidth(text) > width {
		if width <= len(ellipsis) {
			return ellipsis[:width]
		}
		text = runewidth.Truncate(text, width-len(ellipsis), "") + ellipsis
	}

	// FillRight also covers a wide rune that Truncate dropped whole.
	return runewidth.FillRight(text, width)
}

// marqueeText returns a width-column window onto text that moves speed
// columns per second. The window position is derived from now, so the
// output is stateless between calls. Text that fits is just padded.
func marqueeText(text string, width, speed int, separator string, now time.Time) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	loop := []rune(text + separator)
	pos := int(now.Unix()*int64(speed)) % len(loop)
	if pos < 0 {
		pos += len(loop)
	}

	var b strings.Builder
	used := 0
	for i := 0; i < 2*len(loop); i++ {
		r := loop[(pos+i)%len(loop)]
		rw := runewidth.RuneWidth(r)
		if used+rw > width {
			break
		}
		b.WriteRune(r)
		used += rw
	}

	return runewidth.FillRight(b.String(), width)
}
