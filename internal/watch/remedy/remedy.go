// Package remedy tries to shake slacking peers loose by forcing a
// disconnect followed by a reconnect.
package remedy

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/rpc/provider"
	"github.com/vietddude/vitality/internal/watch/backoff"
	"github.com/vietddude/vitality/internal/watch/metrics"
)

// Actions are the node primitives remediation needs.
type Actions interface {
	Disconnect(ctx context.Context, id string, force bool) error
	Connect(ctx context.Context, id, host string, port uint16) error
}

// Actuator disconnects and reconnects reported peers.
type Actuator struct {
	node             Actions
	disconnectSettle time.Duration
	reconnectSettle  time.Duration
	sleep            backoff.Sleeper
	log              *slog.Logger
}

// NewActuator creates an actuator that waits disconnectSettle after the
// disconnect round and reconnectSettle after the reconnect round.
func NewActuator(node Actions, disconnectSettle, reconnectSettle time.Duration) *Actuator {
	return &Actuator{
		node:             node,
		disconnectSettle: disconnectSettle,
		reconnectSettle:  reconnectSettle,
		sleep:            backoff.Sleep,
		log:              slog.Default().With("component", "remedy"),
	}
}

// WithSleeper replaces the settle sleeper.
func (a *Actuator) WithSleeper(s backoff.Sleeper) *Actuator {
	a.sleep = s
	return a
}

// Remediate force-disconnects every reported peer that connected marks as
// connected, then asks the node to reconnect every reported peer. Failed
// actions are added to the report as findings. Only context cancellation
// is returned as an error.
func (a *Actuator) Remediate(ctx context.Context, report *domain.SlackerReport, connected map[string]bool) error {
	peers := report.Peers()

	disconnects := 0
	for _, peer := range peers {
		if !connected[peer] {
			continue
		}
		disconnects++

		a.log.Info("Disconnecting slacking peer", "peer", peer)
		if err := a.node.Disconnect(ctx, peer, true); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.fail(report, peer, "disconnect", domain.KindDisconnectFailed, "Could not disconnect: %s", err)
			continue
		}
		metrics.RemediationsTotal.WithLabelValues("disconnect", "ok").Inc()
	}

	if disconnects > 0 {
		if err := a.sleep(ctx, a.disconnectSettle); err != nil {
			return err
		}
	}

	connects := 0
	for _, peer := range peers {
		connects++

		a.log.Info("Reconnecting slacking peer", "peer", peer)
		if err := a.node.Connect(ctx, peer, "", 0); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.fail(report, peer, "connect", domain.KindConnectFailed, "Could not connect: %s", err)
			continue
		}
		metrics.RemediationsTotal.WithLabelValues("connect", "ok").Inc()
	}

	if connects > 0 {
		return a.sleep(ctx, a.reconnectSettle)
	}
	return nil
}

func (a *Actuator) fail(report *domain.SlackerReport, peer, action string, kind domain.FindingKind, format string, err error) {
	msg := err.Error()
	if rpcErr, ok := provider.AsRPCError(err); ok {
		msg = rpcErr.Message
	}

	metrics.RemediationsTotal.WithLabelValues(action, string(provider.ClassifyError(err))).Inc()
	a.log.Warn("Remediation failed", "peer", peer, "action", action, "error", err)
	report.Add(peer, kind, format, msg)
}
