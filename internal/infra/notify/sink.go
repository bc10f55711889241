// Package notify delivers alerts to the configured sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/watch/metrics"
)

// ErrNoSinks is returned by Dispatch when no sink would receive the alert.
var ErrNoSinks = errors.New("no notification sink configured")

// Alert is one notification.
type Alert struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Node      string    `json:"node,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink delivers alerts to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Dispatcher fans an alert out to every sink enabled by a settings
// snapshot plus the always-on sinks (redis, nats).
type Dispatcher struct {
	telegram *TelegramClient
	mailSink func(s config.Settings) Sink
	static   []Sink
	log      *slog.Logger

	mu   sync.RWMutex
	node string
}

// NewDispatcher creates a dispatcher. static sinks receive every alert.
func NewDispatcher(telegram *TelegramClient, static ...Sink) *Dispatcher {
	return &Dispatcher{
		telegram: telegram,
		mailSink: func(s config.Settings) Sink { return NewMailSink(s) },
		static:   static,
		log:      slog.Default().With("component", "notify"),
	}
}

// SetNode sets the node id stamped on every alert.
func (d *Dispatcher) SetNode(id string) {
	d.mu.Lock()
	d.node = id
	d.mu.Unlock()
}

// Sinks returns the sinks s enables, in delivery order.
func (d *Dispatcher) Sinks(s config.Settings) []Sink {
	var sinks []Sink
	if s.SendMail() {
		sinks = append(sinks, d.mailSink(s))
	}
	if s.SendTelegram() && d.telegram != nil {
		sinks = append(sinks, d.telegram.Sink(s.TelegramToken, s.TelegramUsernames))
	}
	return append(sinks, d.static...)
}

// Dispatch sends subject/body through every enabled sink. A failing sink
// does not stop the others; the joined error is returned for callers that
// report delivery, the loops only log it. ErrNoSinks is returned when
// nothing is enabled.
func (d *Dispatcher) Dispatch(ctx context.Context, s config.Settings, subject, body string) error {
	d.mu.RLock()
	node := d.node
	d.mu.RUnlock()

	alert := Alert{
		ID:        uuid.NewString(),
		Subject:   subject,
		Body:      body,
		Node:      node,
		CreatedAt: time.Now().UTC(),
	}

	sinks := d.Sinks(s)
	if len(sinks) == 0 {
		d.log.Warn("No notification sink configured, alert dropped", "subject", subject)
		return ErrNoSinks
	}

	var errs []error
	for _, sink := range sinks {
		if err := sink.Send(ctx, alert); err != nil {
			metrics.NotificationsTotal.WithLabelValues(sink.Name(), "error").Inc()
			d.log.Warn("Failed to deliver alert", "sink", sink.Name(), "subject", subject, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(sink.Name(), "ok").Inc()
		d.log.Info("Alert delivered", "sink", sink.Name(), "subject", subject, "alert_id", alert.ID)
	}
	return errors.Join(errs...)
}

// Close releases the static sinks.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, sink := range d.static {
		if c, ok := sink.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
