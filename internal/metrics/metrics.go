// Package metrics pushes per-run sync gauges to a Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "whoopsheet"

// RunStats is what one sync run reports.
type RunStats struct {
	Updated  int
	Skipped  int
	Failed   int
	Duration time.Duration
	Finished time.Time
	Success  bool
}

// Pusher sends run gauges to a Pushgateway. A zero URL disables it.
type Pusher struct {
	url    string
	job    string
	client push.HTTPDoer
	logger *slog.Logger

	registry    *prometheus.Registry
	updated     prometheus.Gauge
	skipped     prometheus.Gauge
	failed      prometheus.Gauge
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
	lastSuccess prometheus.Gauge
	success     prometheus.Gauge
}

func NewPusher(url, job string, logger *slog.Logger) *Pusher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if job == "" {
		job = namespace
	}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      name,
			Help:      help,
		})
	}

	p := &Pusher{
		url:         url,
		job:         job,
		logger:      logger,
		registry:    prometheus.NewRegistry(),
		updated:     gauge("cells_updated", "Cells written by the last sync run."),
		skipped:     gauge("dates_skipped", "Dates with zero running time in the last sync run."),
		failed:      gauge("dates_failed", "Dates with no matching cell in the last sync run."),
		duration:    gauge("duration_seconds", "Wall time of the last sync run."),
		lastRun:     gauge("last_run_timestamp_seconds", "Unix time the last sync run finished."),
		lastSuccess: gauge("last_success_timestamp_seconds", "Unix time the last successful sync run finished."),
		success:     gauge("last_run_success", "1 if the last sync run succeeded, 0 otherwise."),
	}
	p.registry.MustRegister(p.updated, p.skipped, p.failed, p.duration, p.lastRun, p.success)
	return p
}

func (p *Pusher) Enabled() bool { return p.url != "" }

// Push records stats and adds them to the job's group. The success
// timestamp is only pushed for successful runs so a failure leaves the
// previous value in place on the gateway.
func (p *Pusher) Push(ctx context.Context, s RunStats) error {
	if !p.Enabled() {
		return nil
	}

	p.updated.Set(float64(s.Updated))
	p.skipped.Set(float64(s.Skipped))
	p.failed.Set(float64(s.Failed))
	p.duration.Set(s.Duration.Seconds())
	p.lastRun.Set(float64(s.Finished.Unix()))
	if s.Success {
		p.success.Set(1)
		p.lastSuccess.Set(float64(s.Finished.Unix()))
	} else {
		p.success.Set(0)
	}

	pusher := push.New(p.url, p.job).Gatherer(p.registry)
	if s.Success {
		pusher = pusher.Collector(p.lastSuccess)
	}
	if p.client != nil {
		pusher = pusher.Client(p.client)
	}

	if err := pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", p.url, err)
	}
	p.logger.Debug("metrics pushed", "url", p.url, "job", p.job)
	return nil
}
