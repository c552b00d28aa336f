// Package forward delivers per-page record batches to a collector.
//
// Delivery is fire-and-forget: one POST per batch, no retry and no
// queue. Every failure is classified, logged and reported as false.
package forward

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jfmyers9/listenlog/internal/metrics"
)

const (
	// DefaultTimeout bounds one delivery.
	DefaultTimeout = 30 * time.Second

	// DefaultBreakerFailures is the number of consecutive failed
	// deliveries that opens the breaker.
	DefaultBreakerFailures = 5

	// breakerCooldown is how long an open breaker short-circuits.
	breakerCooldown = time.Minute

	// maxLoggedBody caps the rejected response body kept for logs.
	maxLoggedBody = 512
)

// Outcome classifies one delivery.
type Outcome int

const (
	Success Outcome = iota
	ConnectionFailure
	Timeout
	Rejected
	EncodingFailure
	Unclassified
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ConnectionFailure:
		return "connection_failure"
	case Timeout:
		return "timeout"
	case Rejected:
		return "rejected"
	case EncodingFailure:
		return "encoding_failure"
	default:
		return "unclassified"
	}
}

// Config configures a Forwarder.
type Config struct {
	URL     string        // Collector base URL; empty disables delivery
	Token   string        // Optional bearer token
	Timeout time.Duration // Defaults to DefaultTimeout
	// BreakerFailures opens the breaker after this many consecutive
	// failures. Negative disables the breaker; zero selects
	// DefaultBreakerFailures.
	BreakerFailures int
	HTTPClient      *http.Client // Optional; its Timeout is overridden
}

// Forwarder posts batches to {URL}/{endpoint}.
type Forwarder struct {
	base    string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[Outcome]
	logger  zerolog.Logger
}

// New creates a Forwarder.
func New(cfg Config, logger zerolog.Logger) *Forwarder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{Timeout: timeout}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		c.Timeout = timeout
		client = &c
	}

	f := &Forwarder{
		base:   strings.TrimRight(cfg.URL, "/"),
		token:  cfg.Token,
		client: client,
		logger: logger.With().Str("component", "forward").Logger(),
	}

	threshold := cfg.BreakerFailures
	if threshold == 0 {
		threshold = DefaultBreakerFailures
	}
	if threshold > 0 {
		f.breaker = gobreaker.NewCircuitBreaker[Outcome](gobreaker.Settings{
			Name:    "forward",
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				f.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("forward breaker state changed")
			},
		})
	}

	return f
}

// Enabled reports whether a destination is configured.
func (f *Forwarder) Enabled() bool {
	return f != nil && f.base != ""
}

// Forward delivers records, a slice, to the named endpoint and reports
// whether the collector acknowledged it. An empty batch succeeds
// without a request. A nil Forwarder has no destination.
func (f *Forwarder) Forward(ctx context.Context, endpoint string, records any) bool {
	return f.Deliver(ctx, endpoint, records) == Success
}

// Deliver is Forward with the outcome exposed.
func (f *Forwarder) Deliver(ctx context.Context, endpoint string, records any) Outcome {
	count := batchLen(records)
	if count == 0 {
		return Success
	}
	if f == nil {
		return Unclassified
	}

	logger := f.logger.With().Str("endpoint", endpoint).Int("records", count).Logger()
	if f.base == "" {
		logger.Warn().Msg("no collector URL configured, batch not forwarded")
		return Unclassified
	}

	start := time.Now()
	outcome := f.deliver(ctx, logger, endpoint, records, count)
	metrics.RecordForward(endpoint, outcome.String(), time.Since(start))
	return outcome
}

func (f *Forwarder) deliver(ctx context.Context, logger zerolog.Logger, endpoint string, records any, count int) Outcome {
	payload, err := json.Marshal(records)
	if err != nil {
		logger.Error().Err(err).Str("outcome", EncodingFailure.String()).Msg("failed to encode batch")
		return EncodingFailure
	}

	if f.breaker == nil {
		return f.post(ctx, logger, endpoint, payload, count)
	}

	outcome, err := f.breaker.Execute(func() (Outcome, error) {
		o := f.post(ctx, logger, endpoint, payload, count)
		if o != Success {
			return o, errors.New(o.String())
		}
		return o, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logger.Warn().Err(err).Str("outcome", Unclassified.String()).Msg("forward breaker open, batch dropped")
		return Unclassified
	}
	return outcome
}

func (f *Forwarder) post(ctx context.Context, logger zerolog.Logger, endpoint string, payload []byte, count int) Outcome {
	dest := f.base + "/" + strings.TrimLeft(endpoint, "/")
	logger = logger.With().Str("url", dest).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest, bytes.NewReader(payload))
	if err != nil {
		logger.Error().Err(err).Str("outcome", Unclassified.String()).Msg("failed to build forward request")
		return Unclassified
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Batch-ID", uuid.NewString())
	req.Header.Set("X-Record-Count", strconv.Itoa(count))
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		outcome := classify(err)
		logger.Error().Err(err).Str("outcome", outcome.String()).Msg("forward failed")
		return outcome
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Str("outcome", Rejected.String()).
			Msg("collector rejected batch")
		return Rejected
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	logger.Debug().Int("status", resp.StatusCode).Msg("batch forwarded")
	return Success
}

// classify maps a transport error to an outcome.
func classify(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ConnectionFailure
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectionFailure
	}
	return Unclassified
}

// batchLen returns the length of a slice or array batch. Nil counts
// as empty; any other value is a single-element batch.
func batchLen(records any) int {
	if records == nil {
		return 0
	}
	v := reflect.ValueOf(records)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return v.Len()
	case reflect.Pointer:
		if v.IsNil() {
			return 0
		}
	}
	return 1
}

// String describes the destination for logs.
func (f *Forwarder) String() string {
	if !f.Enabled() {
		return "forward(disabled)"
	}
	return fmt.Sprintf("forward(%s)", f.base)
}
