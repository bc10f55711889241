package channels

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/vitality/internal/watch/backoff"
	"github.com/vietddude/vitality/internal/watch/health"
	"github.com/vietddude/vitality/internal/watch/metrics"
)

// Loop runs a Cycle on a fixed interval for the life of the process.
type Loop struct {
	cycle        *Cycle
	interval     time.Duration
	initialDelay time.Duration
	recorder     health.Recorder
	sleep        backoff.Sleeper
	log          *slog.Logger
}

// NewLoop creates a loop. recorder may be nil.
func NewLoop(cycle *Cycle, interval, initialDelay time.Duration, recorder health.Recorder) *Loop {
	return &Loop{
		cycle:        cycle,
		interval:     interval,
		initialDelay: initialDelay,
		recorder:     recorder,
		sleep:        backoff.Sleep,
		log:          slog.Default().With("component", "channels"),
	}
}

// WithSleeper replaces the interval sleeper.
func (l *Loop) WithSleeper(s backoff.Sleeper) *Loop {
	l.sleep = s
	return l
}

// Run sleeps the initial delay, then runs a cycle every interval until ctx
// is done. Cycle failures are alerted and never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	if l.initialDelay > 0 {
		l.log.Info("Channel loop waiting before first check", "delay", l.initialDelay)
		if err := l.sleep(ctx, l.initialDelay); err != nil {
			return err
		}
	}

	for {
		l.RunOnce(ctx)
		if err := l.sleep(ctx, l.interval); err != nil {
			return err
		}
	}
}

// RunOnce runs a single cycle and handles its outcome.
func (l *Loop) RunOnce(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := l.cycle.Run(ctx)
	metrics.CycleDuration.WithLabelValues(health.LoopChannels).Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() != nil {
		return res, err
	}

	outcome := health.Outcome{Err: err, Next: l.interval}
	if err != nil {
		metrics.CyclesTotal.WithLabelValues(health.LoopChannels, "error").Inc()
		l.log.Warn("Error in channel check", "error", err)

		settings := l.cycle.settings.Snapshot()
		if derr := l.cycle.notifier.Dispatch(ctx, settings, ErrorSubject, err.Error()); derr != nil {
			l.log.Warn("Failed to send channel check error", "error", derr)
		}
	} else {
		metrics.CyclesTotal.WithLabelValues(health.LoopChannels, "ok").Inc()
		outcome.Slackers = res.Remaining().Len()
	}

	if l.recorder != nil {
		l.recorder.Record(health.LoopChannels, outcome)
	}
	return res, err
}
