package spotify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// get issues a GET for path and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// post sends body as JSON and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// do performs a request with retry on 429 and 5xx responses.
//
// A 429 or 5xx that carries Retry-After waits that long; otherwise the
// delay starts at the configured backoff and doubles per attempt.
// Other non-2xx responses are returned at once as *Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("spotify: encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("spotify: rate limiter: %w", err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("spotify: create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.logDebugf("spotify: %s %s (attempt %d/%d)", method, path, attempt+1, c.maxRetries)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("spotify: request canceled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("spotify: %s %s: %w", method, path, err)
			if !c.backoff(ctx, attempt, 0) {
				return fmt.Errorf("spotify: request canceled: %w", ctx.Err())
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := decodeBody(resp, out)
			_ = resp.Body.Close()
			return err
		}

		apiErr := readError(resp)
		_ = resp.Body.Close()
		if !apiErr.Temporary() {
			return apiErr
		}

		lastErr = apiErr
		c.logDebugf("spotify: %s %s returned %d, retrying", method, path, apiErr.Status)
		if !c.backoff(ctx, attempt, apiErr.RetryAfter) {
			return fmt.Errorf("spotify: request canceled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("spotify: request failed after %d attempts: %w", c.maxRetries, lastErr)
}

// backoff sleeps before the next attempt. It returns false if the
// context ended first. No sleep follows the final attempt.
func (c *Client) backoff(ctx context.Context, attempt int, retryAfter time.Duration) bool {
	if attempt == c.maxRetries-1 {
		return ctx.Err() == nil
	}
	delay := c.baseBackoff * time.Duration(1<<attempt)
	if retryAfter > 0 {
		delay = retryAfter
	}
	return sleepWithContext(ctx, delay)
}

func decodeBody(resp *http.Response, out interface{}) error {
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify: decode response: %w", err)
	}
	return nil
}

func readError(resp *http.Response) *Error {
	apiErr := &Error{
		Status:     resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
