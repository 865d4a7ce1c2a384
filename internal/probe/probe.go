// Package probe runs one check: fetch, decode, evaluate and export.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/y0f/check-http-json/internal/checker"
	"github.com/y0f/check-http-json/internal/config"
	"github.com/y0f/check-http-json/internal/exporter"
	"github.com/y0f/check-http-json/internal/jsontree"
	"github.com/y0f/check-http-json/internal/rules"
	"github.com/y0f/check-http-json/internal/verdict"
)

// Outcome is the result of a run.
type Outcome struct {
	Verdict      *verdict.Verdict
	ResponseTime time.Duration
	Metrics      []rules.Metric
}

func (o *Outcome) Code() verdict.Code { return o.Verdict.Code() }

func (o *Outcome) Message() string { return o.Verdict.Message() }

// Probe evaluates a configured target.
type Probe struct {
	fetcher checker.Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

func New(fetcher checker.Fetcher, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{fetcher: fetcher, logger: logger, now: time.Now}
}

// Run performs the check described by cfg. The returned error is reserved
// for configuration problems; endpoint failures are part of the verdict.
func (p *Probe) Run(ctx context.Context, cfg *config.Config) (*Outcome, error) {
	rs := cfg.RuleSet()
	engine, err := rules.Compile(rs)
	if err != nil {
		return nil, err
	}

	req := buildRequest(cfg)
	log := p.logger.With("run_id", uuid.New().String())
	if rs.Empty() {
		log.Info("no rules configured, only reachability is checked")
	}
	log.Debug("fetching", "url", req.URL, "method", method(req), "headers", req.Headers)

	out := &Outcome{Verdict: &verdict.Verdict{}}

	res, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		recordFetchError(log, out.Verdict, req.URL, err)
	} else {
		out.ResponseTime = res.ResponseTime
		log.Debug("response received",
			"status_code", res.StatusCode,
			"bytes", len(res.Body),
			"response_time_ms", res.ResponseTime.Milliseconds(),
		)
		evaluate(log, out, engine, req.URL, res.Body)
	}

	log.Info("check complete", "url", req.URL, "status", out.Code().String())

	if path := cfg.Export.Textfile; path != "" {
		e := exporter.New()
		e.Observe(req.URL, out.Code(), out.ResponseTime, out.Metrics, p.now())
		if err := e.WriteTextfile(path); err != nil {
			log.Warn("textfile export failed", "path", path, "error", err)
		}
	}

	return out, nil
}

func evaluate(log *slog.Logger, out *Outcome, engine *rules.Engine, url string, body []byte) {
	doc, err := jsontree.Decode(bytes.NewReader(body))
	if err != nil {
		log.Debug("invalid json", "error", err)
		out.Verdict.AppendUnknown(fmt.Sprintf("JSONDecodeError[%s], url:%s", err, url), "")
		return
	}
	if log.Enabled(context.Background(), slog.LevelDebug) {
		if text, err := doc.MarshalJSON(); err == nil {
			log.Debug("json", "document", string(text))
		}
	}

	out.Verdict = engine.Evaluate(doc)
	out.Metrics = engine.Metrics(doc)
}

func recordFetchError(log *slog.Logger, v *verdict.Verdict, url string, err error) {
	var te *checker.TransportError
	switch {
	case errors.As(err, &te) && te.Kind == checker.KindHTTPStatus:
		log.Warn("endpoint returned error status", "url", url, "status_code", te.StatusCode)
		v.AppendUnknown(te.Error(), "")
	case errors.As(err, &te):
		log.Warn("endpoint unreachable", "url", url, "error", te.Err)
		v.AppendCritical(te.Error(), "")
	default:
		log.Warn("fetch failed", "url", url, "error", err)
		v.AppendUnknown(fmt.Sprintf("ResponseError[%s], url:%s", err, url), "")
	}
}

func buildRequest(cfg *config.Config) checker.Request {
	t := cfg.Target
	req := checker.Request{
		URL:          cfg.URL(),
		Data:         t.Data,
		Headers:      t.Headers,
		Timeout:      t.Timeout,
		Insecure:     t.Insecure,
		Proxy:        t.Proxy,
		BlockPrivate: t.BlockPrivate,
		MaxBodySize:  t.MaxBodySize,
	}
	if user, pass, ok := cfg.Credentials(); ok {
		req.BasicAuth = true
		req.User = user
		req.Password = pass
	}
	return req
}

func method(r checker.Request) string {
	if r.Data != "" {
		return "POST"
	}
	return "GET"
}
