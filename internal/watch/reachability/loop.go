package reachability

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/watch/backoff"
	"github.com/vietddude/vitality/internal/watch/health"
	"github.com/vietddude/vitality/internal/watch/metrics"
)

// ErrorSubject is the subject of sustained probe failure alerts.
const ErrorSubject = "Amboss error"

// Notifier dispatches an alert through the sinks enabled by s.
type Notifier interface {
	Dispatch(ctx context.Context, s config.Settings, subject, body string) error
}

// SettingsSource hands out private copies of the live settings.
type SettingsSource interface {
	Snapshot() config.Settings
}

// Loop probes on the backoff schedule for the life of the process.
type Loop struct {
	prober   *Prober
	backoff  *backoff.LinearBackoff
	settings SettingsSource
	notifier Notifier
	recorder health.Recorder
	sleep    backoff.Sleeper
	log      *slog.Logger
}

// NewLoop creates a probe loop. recorder may be nil.
func NewLoop(prober *Prober, b *backoff.LinearBackoff, settings SettingsSource, notifier Notifier, recorder health.Recorder) *Loop {
	return &Loop{
		prober:   prober,
		backoff:  b,
		settings: settings,
		notifier: notifier,
		recorder: recorder,
		sleep:    backoff.Sleep,
		log:      slog.Default().With("component", "reachability"),
	}
}

// WithSleeper replaces the interval sleeper.
func (l *Loop) WithSleeper(s backoff.Sleeper) *Loop {
	l.sleep = s
	return l
}

// Run probes immediately and then after every backoff delay until ctx is
// done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		next, _ := l.RunOnce(ctx)
		if err := l.sleep(ctx, next); err != nil {
			return err
		}
	}
}

// RunOnce probes once and returns the delay before the next probe.
func (l *Loop) RunOnce(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := l.prober.Probe(ctx)
	metrics.CycleDuration.WithLabelValues(health.LoopReachability).Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() != nil {
		return 0, err
	}

	var next time.Duration
	if err == nil {
		next = l.backoff.Success()
		metrics.CyclesTotal.WithLabelValues(health.LoopReachability, "ok").Inc()
	} else {
		var alert bool
		next, alert = l.backoff.Failure()
		metrics.CyclesTotal.WithLabelValues(health.LoopReachability, "error").Inc()
		l.log.Warn("Error in health check ping",
			"error", err,
			"failures", l.backoff.Failures(),
			"next", next,
		)

		if alert {
			settings := l.settings.Snapshot()
			if derr := l.notifier.Dispatch(ctx, settings, ErrorSubject, err.Error()); derr != nil {
				l.log.Warn("Failed to send probe alert", "error", derr)
			}
		}
	}
	metrics.ProbeFailureStreak.Set(float64(l.backoff.Failures()))

	if l.recorder != nil {
		l.recorder.Record(health.LoopReachability, health.Outcome{Err: err, Next: next})
	}
	return next, err
}
