// Package tui is a terminal dashboard for the Last.fm account: what is
// playing, the latest plays and how far the sync daemon has got.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jfmyers9/listenlog/internal/collect"
	"github.com/jfmyers9/listenlog/internal/daemon"
	"github.com/jfmyers9/listenlog/internal/record"
)

// Source supplies what the dashboard shows.
type Source interface {
	NowPlaying(ctx context.Context) (*record.NowPlaying, error)
	RecentTracks(ctx context.Context, w collect.Window) collect.Result[record.PlayEvent]
}

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to ask Last.fm again
	RecentCount int           // Plays listed in the recent panel
	StateFile   string        // Sync daemon state; empty hides the panel
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 15 * time.Second,
		RecentCount: 8,
	}
}

// snapshot is one round of data from the source.
type snapshot struct {
	current   *record.NowPlaying
	plays     []record.PlayEvent
	sync      daemon.SyncState
	err       error
	fetchedAt time.Time
}

// App is the dashboard application
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	syncPanel  *tview.TextView
	recent     *tview.TextView
	status     *tview.TextView

	config Config
	source Source

	mu   sync.Mutex
	last snapshot // guarded by mu

	// Last-rendered content for change detection
	lastNowPlaying string
	lastSync       string
	lastRecent     string

	refreshCh  chan struct{}
	cancelFunc context.CancelFunc
}

// New creates a dashboard over source.
func New(source Source, cfg Config) *App {
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = DefaultConfig().RefreshRate
	}
	if cfg.RecentCount <= 0 {
		cfg.RecentCount = DefaultConfig().RecentCount
	}

	a := &App{
		app:       tview.NewApplication(),
		config:    cfg,
		source:    source,
		refreshCh: make(chan struct{}, 1),
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.syncPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.syncPanel.SetBorder(true).
		SetTitle(" Sync ").
		SetTitleAlign(tview.AlignLeft)

	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Recent ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  r:refresh[-]")

	// Top: now playing. Middle: recent plays | sync progress.
	middle := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.recent, 0, 2, false)
	if a.config.StateFile != "" {
		middle.AddItem(a.syncPanel, 0, 1, false)
	}

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 8, 1, false).
		AddItem(middle, a.config.RecentCount+2, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case 'r', 'R':
		select {
		case a.refreshCh <- struct{}{}:
		default:
		}
		return nil
	}
	return event
}

// Run shows the dashboard until the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	go a.poll(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// poll is the single source of redraws.
func (a *App) poll(ctx context.Context) {
	ticker := time.NewTicker(a.config.RefreshRate)
	defer ticker.Stop()

	for {
		snap := a.fetch(ctx)
		a.mu.Lock()
		a.last = snap
		a.mu.Unlock()
		a.refresh()

		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
		case <-a.refreshCh:
		}
	}
}

func (a *App) fetch(ctx context.Context) snapshot {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	snap := snapshot{fetchedAt: time.Now()}

	current, err := a.source.NowPlaying(ctx)
	if err != nil {
		snap.err = err
	}
	snap.current = current

	res := a.source.RecentTracks(ctx, collect.Window{PageSize: a.config.RecentCount, MaxPages: 1})
	snap.plays = res.Records
	if res.Err != nil && snap.err == nil {
		snap.err = res.Err
	}

	if a.config.StateFile != "" {
		if st, err := daemon.ReadState(a.config.StateFile); err == nil {
			snap.sync = st
		}
	}
	return snap
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		snap := a.last
		a.mu.Unlock()

		now := time.Now()
		setIfChanged(a.nowPlaying, &a.lastNowPlaying, renderNowPlaying(snap.current, snap.err))
		setIfChanged(a.recent, &a.lastRecent, renderRecent(snap.plays, now))
		setIfChanged(a.syncPanel, &a.lastSync, renderSync(snap.sync, now))
	})
}

func setIfChanged(view *tview.TextView, last *string, text string) {
	if text != *last {
		*last = text
		view.SetText(text)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

func renderNowPlaying(np *record.NowPlaying, err error) string {
	if np == nil {
		if err != nil {
			return "\n[red]" + tview.Escape(err.Error()) + "[-]"
		}
		return "\n\n[gray]Nothing playing[-]"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(np.Title)))
	sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(np.Artist)))
	if np.Album != "" {
		sb.WriteString(fmt.Sprintf("[gray]%s[-]\n", tview.Escape(np.Album)))
	}
	sb.WriteString("\n[green]▶[-]")
	return sb.String()
}

func renderRecent(plays []record.PlayEvent, now time.Time) string {
	if len(plays) == 0 {
		return "[gray]No recent plays[-]"
	}

	var sb strings.Builder
	for i, p := range plays {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[gray]%8s[-]  [white]%s[-] [gray]-[-] [yellow]%s[-]",
			formatAgo(now.Sub(p.PlayedAt)), tview.Escape(p.Title), tview.Escape(p.Artist)))
	}
	return sb.String()
}

func renderSync(st daemon.SyncState, now time.Time) string {
	if st.LastSyncAt.IsZero() && st.LastError == "" {
		return "[gray]No sync yet[-]"
	}

	var sb strings.Builder
	if st.LastError != "" {
		sb.WriteString("[red]✗ " + tview.Escape(st.LastError) + "[-]\n")
	} else {
		sb.WriteString("[green]✓ Up to date[-]\n")
	}
	sb.WriteString(fmt.Sprintf("Synced:  %d\n", st.TotalSynced))
	if !st.LastSyncAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Last:    %s ago\n", formatDuration(now.Sub(st.LastSyncAt))))
	}
	if !st.LastPlayedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Newest:  %s", st.LastPlayedAt.Local().Format("Jan 2 15:04")))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatAgo renders an age in its largest whole unit.
func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
