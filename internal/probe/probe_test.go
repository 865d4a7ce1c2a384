package probe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y0f/check-http-json/internal/checker"
	"github.com/y0f/check-http-json/internal/config"
	"github.com/y0f/check-http-json/internal/rules"
	"github.com/y0f/check-http-json/internal/verdict"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	result *checker.Result
	err    error
	got    checker.Request
}

func (f *fakeFetcher) Fetch(_ context.Context, req checker.Request) (*checker.Result, error) {
	f.got = req
	return f.result, f.err
}

func serverConfig(t *testing.T, srv *httptest.Server) *config.Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Target.Host = u.Hostname()
	cfg.Target.Port = port
	cfg.Target.Path = "status"
	cfg.Target.Timeout = 5 * time.Second
	return cfg
}

func TestRunAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		w.Write([]byte(`{"metric":5,"status":"ok"}`))
	}))
	defer srv.Close()

	cfg := serverConfig(t, srv)
	cfg.Rules.Warning = []string{"metric,1:4"}
	cfg.Rules.KeyEqualsCritical = []string{"status,ok"}
	cfg.Rules.Metrics = []string{"metric"}

	p := New(&checker.HTTPChecker{}, discardLogger())
	out, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, verdict.Warning, out.Code())
	assert.Equal(t, "WARNING: Value for key status (ok) does match ok. Value for key metric (5) was outside the range '1 : 4'.|'metric'=5", out.Message())
	assert.Equal(t, []rules.Metric{{Label: "metric", Value: "5"}}, out.Metrics)
}

func TestRunHTTPErrorIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := serverConfig(t, srv)
	p := New(&checker.HTTPChecker{}, discardLogger())
	out, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, verdict.Unknown, out.Code())
	assert.Equal(t, "UNKNOWN:HTTPError[503], url:"+cfg.URL(), out.Message())
}

func TestRunTruncatedBodyIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte(`{"metric":`))
	}))
	defer srv.Close()

	cfg := serverConfig(t, srv)
	p := New(&checker.HTTPChecker{}, discardLogger())
	out, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, verdict.Unknown, out.Code())
	assert.True(t, strings.HasPrefix(out.Message(), "UNKNOWN:ResponseError[read body:"), out.Message())
	assert.True(t, strings.HasSuffix(out.Message(), "], url:"+cfg.URL()), out.Message())
}

func TestRunConnectErrorIsCritical(t *testing.T) {
	f := &fakeFetcher{err: &checker.TransportError{
		Kind: checker.KindConnect,
		URL:  "http://localhost",
		Err:  context.DeadlineExceeded,
	}}
	cfg := config.Defaults()
	cfg.Target.Host = "localhost"

	out, err := New(f, discardLogger()).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, verdict.Critical, out.Code())
	assert.Equal(t, "CRITICAL:URLError[timed out], url:http://localhost", out.Message())
}

func TestRunOtherFetchErrorIsUnknown(t *testing.T) {
	f := &fakeFetcher{err: checker.ErrBodyTooLarge}
	cfg := config.Defaults()
	cfg.Target.Host = "localhost"

	out, err := New(f, discardLogger()).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, verdict.Unknown, out.Code())
	assert.Contains(t, out.Message(), "response body too large")
}

func TestRunInvalidJSON(t *testing.T) {
	f := &fakeFetcher{result: &checker.Result{StatusCode: 200, Body: []byte("<html>")}}
	cfg := config.Defaults()
	cfg.Target.Host = "localhost"
	cfg.Rules.KeyExists = []string{"status"}

	out, err := New(f, discardLogger()).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, verdict.Unknown, out.Code())
	assert.Contains(t, out.Message(), "UNKNOWN:JSONDecodeError[")
	assert.Contains(t, out.Message(), "url:http://localhost")
}

func TestRunDeeplyNestedJSON(t *testing.T) {
	body := strings.Repeat("[", 1<<20) + strings.Repeat("]", 1<<20)
	f := &fakeFetcher{result: &checker.Result{StatusCode: 200, Body: []byte(body)}}
	cfg := config.Defaults()
	cfg.Target.Host = "localhost"
	cfg.Rules.KeyExists = []string{"status"}

	out, err := New(f, discardLogger()).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, verdict.Unknown, out.Code())
	assert.Contains(t, out.Message(), "JSONDecodeError[")
	assert.Contains(t, out.Message(), "exceeded max depth")
}

func TestRunConfigError(t *testing.T) {
	f := &fakeFetcher{}
	cfg := config.Defaults()
	cfg.Target.Host = "localhost"
	cfg.Rules.Warning = []string{"metric,5:1"}

	out, err := New(f, discardLogger()).Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, out)

	var ce *rules.ConfigError
	assert.True(t, errors.As(err, &ce))
	assert.Empty(t, f.got.URL, "no request should be made")
}

func TestRunBuildsRequest(t *testing.T) {
	f := &fakeFetcher{result: &checker.Result{StatusCode: 200, Body: []byte(`{}`)}}
	cfg := config.Defaults()
	cfg.Target.Host = "example.com"
	cfg.Target.SSL = true
	cfg.Target.Data = "a=1"
	cfg.Target.BasicAuth = "admin:secret"
	cfg.Target.Headers = map[string]string{"X-Token": "t"}
	cfg.Target.Proxy = "socks5://proxy:1080"
	cfg.Target.BlockPrivate = true

	_, err := New(f, discardLogger()).Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, checker.Request{
		URL:          "https://example.com",
		Data:         "a=1",
		Headers:      map[string]string{"X-Token": "t"},
		BasicAuth:    true,
		User:         "admin",
		Password:     "secret",
		Timeout:      10 * time.Second,
		Proxy:        "socks5://proxy:1080",
		BlockPrivate: true,
		MaxBodySize:  10 << 20,
	}, f.got)
}

func TestRunWritesTextfile(t *testing.T) {
	f := &fakeFetcher{result: &checker.Result{StatusCode: 200, Body: []byte(`{"load":0.5}`), ResponseTime: time.Second}}
	cfg := config.Defaults()
	cfg.Target.Host = "localhost"
	cfg.Rules.Metrics = []string{"load"}
	cfg.Export.Textfile = filepath.Join(t.TempDir(), "check.prom")

	p := New(f, discardLogger())
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	out, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, verdict.OK, out.Code())

	raw, err := os.ReadFile(cfg.Export.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `check_http_json_metric{label="load",uom=""} 0.5`)
	assert.Contains(t, string(raw), `check_http_json_status{url="http://localhost"} 0`)
	assert.Contains(t, string(raw), "check_http_json_response_seconds 1")
}

func TestRunTextfileFailureKeepsVerdict(t *testing.T) {
	f := &fakeFetcher{result: &checker.Result{StatusCode: 200, Body: []byte(`{}`)}}
	cfg := config.Defaults()
	cfg.Target.Host = "localhost"
	cfg.Export.Textfile = filepath.Join(t.TempDir(), "missing", "check.prom")

	out, err := New(f, discardLogger()).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "OK:", out.Message())
}
