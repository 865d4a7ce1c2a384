// Package exporter writes check results in the Prometheus text format so the
// node_exporter textfile collector can pick them up.
package exporter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/y0f/check-http-json/internal/rules"
	"github.com/y0f/check-http-json/internal/verdict"
)

// Exporter holds the gauges for one check run.
type Exporter struct {
	registry *prometheus.Registry

	status       *prometheus.GaugeVec
	responseTime prometheus.Gauge
	metric       *prometheus.GaugeVec
	lastRun      prometheus.Gauge
}

// New registers the check gauges on a private registry.
func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "check_http_json_status",
				Help: "Plugin exit code: 0 ok, 1 warning, 2 critical, 3 unknown",
			},
			[]string{"url"},
		),
		responseTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "check_http_json_response_seconds",
			Help: "Time taken to receive the response",
		}),
		metric: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "check_http_json_metric",
				Help: "Value of a metric rule read from the document",
			},
			[]string{"label", "uom"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "check_http_json_last_run_timestamp_seconds",
			Help: "Unix time of the last check run",
		}),
	}
	e.registry.MustRegister(e.status, e.responseTime, e.metric, e.lastRun)
	return e
}

// Observe records a completed run. Non-numeric metric values are skipped.
func (e *Exporter) Observe(url string, code verdict.Code, elapsed time.Duration, metrics []rules.Metric, now time.Time) {
	e.status.WithLabelValues(url).Set(float64(code))
	e.responseTime.Set(elapsed.Seconds())
	e.lastRun.Set(float64(now.Unix()))
	for _, m := range metrics {
		v, err := strconv.ParseFloat(m.Value, 64)
		if err != nil {
			continue
		}
		e.metric.WithLabelValues(m.Label, m.UOM).Set(v)
	}
}

// Gatherer exposes the registry.
func (e *Exporter) Gatherer() prometheus.Gatherer { return e.registry }

// WriteTextfile atomically replaces path with the current gauge values.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("write textfile: %w", err)
	}
	return nil
}
