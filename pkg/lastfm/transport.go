package lastfm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// envelope is the <lfm> root every response is wrapped in.
type envelope struct {
	XMLName xml.Name `xml:"lfm"`
	Status  string   `xml:"status,attr"`
	Inner   []byte   `xml:",innerxml"`
}

type errorBody struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:",chardata"`
}

const (
	statusOK     = "ok"
	statusFailed = "failed"

	maxBackoff = 30 * time.Second
)

// call invokes method with params and returns the inner XML of the
// <lfm> envelope.
//
// Read methods are unsigned, so only the API key accompanies the
// method parameters. Empty parameter values are omitted. Network
// errors, 5xx statuses and temporary API codes are retried.
func (c *Client) call(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	form := url.Values{"method": {method}, "api_key": {c.apiKey}}
	for k, v := range params {
		if v != "" {
			form.Set(k, v)
		}
	}
	encoded := form.Encode()

	delay := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		c.logDebugf("lastfm: calling %s (attempt %d/%d)", method, attempt, c.maxRetries)

		inner, retry, err := c.attempt(ctx, encoded)
		if err == nil {
			return inner, nil
		}
		if !retry || attempt == c.maxRetries {
			return nil, err
		}

		lastErr = err
		c.logDebugf("lastfm: %s failed, retrying in %s: %v", method, delay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxBackoff)
	}

	return nil, fmt.Errorf("lastfm: %s failed after %d attempts: %w", method, c.maxRetries, lastErr)
}

// attempt performs one request. retry reports whether a later attempt
// might succeed.
func (c *Client) attempt(ctx context.Context, form string) (inner []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form))
	if err != nil {
		return nil, false, fmt.Errorf("lastfm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retryableNetErr(err), fmt.Errorf("lastfm: http request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, false, fmt.Errorf("lastfm: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("lastfm: server error: %s", resp.Status)
	}

	// API errors arrive with 4xx statuses and an XML body.
	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, false, fmt.Errorf("lastfm: unexpected status code: %d", resp.StatusCode)
		}
		return nil, false, fmt.Errorf("lastfm: parse response: %w", err)
	}

	switch {
	case env.Status == statusFailed:
		var eb errorBody
		if err := xml.Unmarshal(env.Inner, &eb); err != nil {
			return nil, false, fmt.Errorf("lastfm: parse error response: %w", err)
		}
		apiErr := &Error{Code: eb.Code, Message: strings.TrimSpace(eb.Message)}
		return nil, apiErr.Temporary(), apiErr
	case resp.StatusCode != http.StatusOK || env.Status != statusOK:
		return nil, false, fmt.Errorf("lastfm: unexpected response: status %d, lfm status %q", resp.StatusCode, env.Status)
	}
	return env.Inner, false, nil
}

// retryableNetErr reports whether err is a transport failure worth
// another attempt. A cancelled or expired context never is.
func retryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
