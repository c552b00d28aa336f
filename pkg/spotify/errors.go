package spotify

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error is a non-2xx response from the Web API.
type Error struct {
	Status     int
	Message    string
	RetryAfter time.Duration // Set on 429 when the server sent Retry-After
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify: status %d", e.Status)
	}
	return fmt.Sprintf("spotify: status %d: %s", e.Status, e.Message)
}

// Temporary reports whether the request may succeed if repeated.
func (e *Error) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// ErrTooManyIDs is returned when a batch call is given more ids than
// the Web API accepts in one request.
var ErrTooManyIDs = fmt.Errorf("spotify: at most %d ids per request", MaxIDsPerRequest)

// IsUnauthorized reports whether err is a 401 response, meaning the
// access token was rejected.
func IsUnauthorized(err error) bool {
	var spErr *Error
	return errors.As(err, &spErr) && spErr.Status == http.StatusUnauthorized
}

type errorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
