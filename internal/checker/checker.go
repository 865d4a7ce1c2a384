// Package checker fetches the JSON document a check evaluates.
package checker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Request describes the single HTTP exchange of a check.
type Request struct {
	URL     string
	Data    string // sent as a POST body when non-empty
	Headers map[string]string

	BasicAuth bool
	User      string
	Password  string

	Timeout      time.Duration
	Insecure     bool
	Proxy        string
	BlockPrivate bool
	MaxBodySize  int64
}

// Result holds a successful response.
type Result struct {
	StatusCode   int
	Body         []byte
	ResponseTime time.Duration
}

// Fetcher performs a Request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// ErrBodyTooLarge is returned when the response exceeds Request.MaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

// ErrorKind separates unreachable endpoints from endpoints answering with an
// error status.
type ErrorKind int

const (
	KindConnect ErrorKind = iota
	KindHTTPStatus
)

// TransportError is a failed fetch.
type TransportError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("HTTPError[%d], url:%s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("URLError[%s], url:%s", reason(e.Err), e.URL)
}

func (e *TransportError) Unwrap() error { return e.Err }

// reason strips the request method and URL that net/http prefixes to
// connection errors.
func reason(err error) string {
	if err == nil {
		return "unknown"
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return "timed out"
		}
		return ue.Err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	return err.Error()
}
