package lastfm

import (
	"errors"
	"fmt"
)

// Error is a failure reported by the API in a status="failed" envelope.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lastfm: error %d: %s", e.Code, e.Message)
}

// Is matches another *Error with the same code, so sentinel values like
// &Error{Code: ErrCodeRateLimitExceeded} work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// Temporary reports whether the call may succeed if repeated: the
// service is offline or unavailable, or the key hit its rate limit.
func (e *Error) Temporary() bool {
	switch e.Code {
	case ErrCodeServiceOffline, ErrCodeTempUnavailable, ErrCodeRateLimitExceeded:
		return true
	}
	return false
}

// API error codes, from https://www.last.fm/api/errorcodes.
const (
	ErrCodeInvalidService       = 2
	ErrCodeInvalidMethod        = 3
	ErrCodeAuthenticationFailed = 4
	ErrCodeInvalidFormat        = 5
	ErrCodeInvalidParameters    = 6
	ErrCodeInvalidResourceSpec  = 7
	ErrCodeOperationFailed      = 8
	ErrCodeInvalidSessionKey    = 9
	ErrCodeInvalidAPIKey        = 10
	ErrCodeServiceOffline       = 11
	ErrCodeSubscribersOnly      = 12
	ErrCodeInvalidSignature     = 13
	ErrCodeUnauthorizedToken    = 14
	ErrCodeExpiredToken         = 15
	ErrCodeTempUnavailable      = 16
	ErrCodeSuspendedAPIKey      = 26
	ErrCodeRateLimitExceeded    = 29
)

// ErrInvalidParams is returned when a request is missing a required
// parameter before anything is sent.
var ErrInvalidParams = errors.New("lastfm: invalid parameters")

// IsNotFound reports whether err is Last.fm's "invalid resource"
// response, which the API uses for unknown users.
func IsNotFound(err error) bool {
	var lfmErr *Error
	return errors.As(err, &lfmErr) && lfmErr.Code == ErrCodeInvalidResourceSpec
}

// IsAuthError reports whether err means the API key itself was refused.
func IsAuthError(err error) bool {
	var lfmErr *Error
	if !errors.As(err, &lfmErr) {
		return false
	}
	switch lfmErr.Code {
	case ErrCodeInvalidAPIKey, ErrCodeSuspendedAPIKey, ErrCodeAuthenticationFailed:
		return true
	}
	return false
}
