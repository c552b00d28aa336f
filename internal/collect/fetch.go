// Package collect runs paginated vendor fetches.
//
// A fetch walks pages strictly in sequence, sleeping a fixed delay
// between them, and stops on the first of:
//
//  1. the page cap is reached before the next request,
//  2. a page with no items,
//  3. a page shorter than the page size (after processing it),
//  4. the item cap is reached (output truncated to the cap),
//  5. a page error (the pages so far are returned as partial),
//  6. the server reporting that there are no further pages.
//
// There is no retry and no backoff here; the vendor SDKs own that.
package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/metrics"
)

// PageDelay is the pause between consecutive page requests.
const PageDelay = 200 * time.Millisecond

// Window bounds a single fetch. Zero caps mean unbounded and zero
// times mean unset.
type Window struct {
	PageSize int
	MaxPages int
	MaxItems int
	From     time.Time
	To       time.Time
}

// Page identifies the page being requested.
type Page struct {
	Index  int    // 1-based
	Offset int    // (Index-1) * Size, for offset-paged endpoints
	Cursor string // position returned by the previous page, empty on the first
	Size   int
	From   time.Time
	To     time.Time
}

// Cursor describes the page that was just fetched.
type Cursor struct {
	// Next is the position of the following page for cursor-paged
	// endpoints.
	Next string
	// Done is set when the server reported that no pages follow.
	Done bool
	// Fetched is the number of raw items the vendor returned before
	// mapping. Zero means len(records).
	Fetched int
}

// PageFunc fetches and maps one page.
type PageFunc[R any] func(ctx context.Context, p Page) ([]R, Cursor, error)

// Status classifies a fetch result.
type Status int

const (
	// Complete means the fetch ended on a normal stop condition.
	Complete Status = iota
	// Partial means an error cut the fetch short after some records
	// were collected.
	Partial
	// Failed means an error occurred before any record was collected.
	Failed
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a fetch.
type Result[R any] struct {
	Records []R
	Status  Status
	Err     error
	Pages   int // page requests issued
}

// OK reports whether the fetch finished without error.
func (r Result[R]) OK() bool {
	return r.Status == Complete
}

// Fetcher holds the pacing and logging shared by fetches.
type Fetcher struct {
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	logger zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDelay overrides PageDelay.
func WithDelay(d time.Duration) Option {
	return func(f *Fetcher) { f.delay = d }
}

// WithSleeper replaces the context-aware sleep between pages.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// NewFetcher creates a Fetcher.
func NewFetcher(logger zerolog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		delay:  PageDelay,
		sleep:  sleepContext,
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch runs fn page by page within w. onPage, if not nil, receives
// every non-empty page's records as returned by fn, before the item
// cap truncates the accumulated output.
//
// source names the fetch in logs and metrics.
func Fetch[R any](ctx context.Context, f *Fetcher, source string, w Window, fn PageFunc[R], onPage func([]R)) Result[R] {
	logger := f.logger.With().Str("source", source).Logger()

	var (
		res    Result[R]
		cursor string
	)

	for index := 1; w.MaxPages <= 0 || index <= w.MaxPages; index++ {
		page := Page{
			Index:  index,
			Offset: (index - 1) * w.PageSize,
			Cursor: cursor,
			Size:   w.PageSize,
			From:   w.From,
			To:     w.To,
		}

		records, next, err := callPage(ctx, fn, page)
		res.Pages++
		if err != nil {
			logger.Error().Err(err).Int("page", index).Int("records", len(res.Records)).Msg("page fetch failed, stopping")
			res.Err = err
			break
		}

		fetched := next.Fetched
		if fetched == 0 {
			fetched = len(records)
		}
		logger.Debug().Int("page", index).Int("fetched", fetched).Int("mapped", len(records)).Msg("fetched page")

		if fetched == 0 {
			break
		}

		if onPage != nil && len(records) > 0 {
			onPage(records)
		}
		res.Records = append(res.Records, records...)

		if fetched < w.PageSize {
			break
		}
		if w.MaxItems > 0 && len(res.Records) >= w.MaxItems {
			logger.Debug().Int("max_items", w.MaxItems).Msg("item cap reached")
			break
		}
		if next.Done {
			break
		}
		if w.MaxPages > 0 && index >= w.MaxPages {
			break
		}

		cursor = next.Next
		if err := f.sleep(ctx, f.delay); err != nil {
			res.Err = err
			break
		}
	}

	if w.MaxItems > 0 && len(res.Records) > w.MaxItems {
		res.Records = res.Records[:w.MaxItems]
	}

	switch {
	case res.Err == nil:
		res.Status = Complete
	case len(res.Records) > 0:
		res.Status = Partial
	default:
		res.Status = Failed
	}

	metrics.RecordFetch(source, res.Pages, len(res.Records), res.Err)
	logger.Info().
		Int("pages", res.Pages).
		Int("records", len(res.Records)).
		Stringer("status", res.Status).
		Msg("fetch finished")

	return res
}

// callPage invokes fn, turning a panic into an error.
func callPage[R any](ctx context.Context, fn PageFunc[R], p Page) (records []R, next Cursor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: unexpected panic: %v", p.Index, r)
		}
	}()
	return fn(ctx, p)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
