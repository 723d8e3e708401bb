package classifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedReply is returned when a 2xx body carries no usable choice.
var ErrMalformedReply = errors.New("malformed classifier reply")

// StatusError is a non-2xx reply from the classification service.
type StatusError struct {
	StatusCode    int
	RetryAfter    time.Duration
	HasRetryAfter bool
	Body          string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(body))
}

// RateLimited reports a 429 reply.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ServerError reports a 5xx reply.
func (e *StatusError) ServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// ClientError reports a 4xx reply other than 429.
func (e *StatusError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode <= 499 && !e.RateLimited()
}

// NetworkError is a transport failure: connect, TLS, read or timeout.
type NetworkError struct {
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network timeout: %v", e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func newNetworkError(err error) *NetworkError {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	return &NetworkError{Timeout: timeout, Err: err}
}

// parseRetryAfter reads a Retry-After header given as delay seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
