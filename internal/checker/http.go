package checker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/y0f/check-http-json/internal/safenet"
)

const defaultUserAgent = "check_http_json"

// HTTPChecker fetches documents over HTTP(S). The zero value is ready to use.
type HTTPChecker struct {
	UserAgent string
}

func (c *HTTPChecker) Fetch(ctx context.Context, r Request) (*Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	method := http.MethodGet
	var body io.Reader
	if r.Data != "" {
		method = http.MethodPost
		body = strings.NewReader(r.Data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, &TransportError{Kind: KindConnect, URL: r.URL, Err: err}
	}

	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if r.Data != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if r.BasicAuth {
		req.SetBasicAuth(r.User, r.Password)
	}

	client := &http.Client{Transport: newTransport(r)}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, &TransportError{Kind: KindConnect, URL: r.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &TransportError{Kind: KindHTTPStatus, URL: r.URL, StatusCode: resp.StatusCode}
	}

	limit := r.MaxBodySize
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Kind: KindConnect, URL: r.URL, Err: ctx.Err()}
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}

	return &Result{
		StatusCode:   resp.StatusCode,
		Body:         data,
		ResponseTime: elapsed,
	}, nil
}

func newTransport(r Request) *http.Transport {
	dialer := &net.Dialer{
		Timeout: r.Timeout,
		Control: safenet.ControlFor(r.BlockPrivate),
	}

	t := &http.Transport{
		DialContext: dialer.DialContext,
		Proxy:       http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: r.Insecure,
		},
		DisableKeepAlives: true,
	}

	if u := HTTPProxyURL(r.Proxy); u != nil {
		t.Proxy = http.ProxyURL(u)
	} else if dial := ProxyDialer(r.Proxy, dialer.DialContext); dial != nil {
		t.Proxy = nil
		t.DialContext = dial
	}
	return t
}
