// Package channels runs the channel health check: fetch node state,
// inspect, remediate, re-inspect and alert on what is left.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/telemetry"
	"github.com/vietddude/vitality/internal/watch/gossip"
	"github.com/vietddude/vitality/internal/watch/inspect"
	"github.com/vietddude/vitality/internal/watch/metrics"
	"github.com/vietddude/vitality/internal/watch/remedy"
)

// Subjects of the alerts sent by the channel loop.
const (
	ReportSubject = "Channel check report"
	ErrorSubject  = "Channel check error"
)

// Node is the part of the node gateway a cycle uses.
type Node interface {
	GetInfo(ctx context.Context) (domain.NodeInfo, error)
	ListPeerChannels(ctx context.Context, peer string) ([]domain.PeerChannel, error)
	ListNodes(ctx context.Context, id string) ([]domain.Node, error)
	gossip.Source
	remedy.Actions
}

// Notifier dispatches an alert through the sinks enabled by s.
type Notifier interface {
	Dispatch(ctx context.Context, s config.Settings, subject, body string) error
}

// SettingsSource hands out private copies of the live settings.
type SettingsSource interface {
	Snapshot() config.Settings
}

// Result describes one cycle.
type Result struct {
	RunID   string
	Node    domain.NodeInfo
	Aliases map[string]string
	// Pre holds the first-pass findings plus remediation failures.
	Pre *domain.SlackerReport
	// Post is nil when remediation was skipped.
	Post *domain.SlackerReport

	Subject     string
	Body        string
	Dispatched  bool
	DispatchErr error
}

// Remaining returns the report that decides alerting.
func (r *Result) Remaining() *domain.SlackerReport {
	if r.Post != nil {
		return r.Post
	}
	if r.Pre != nil {
		return r.Pre
	}
	return domain.NewSlackerReport()
}

type state struct {
	info     domain.NodeInfo
	channels []domain.PeerChannel
	aliases  map[string]string
	gossip   domain.GossipIndex
}

// Cycle is one health check run against the node.
type Cycle struct {
	node     Node
	gossip   *gossip.Builder
	actuator *remedy.Actuator
	settings SettingsSource
	notifier Notifier
	log      *slog.Logger
}

// NewCycle creates a cycle.
func NewCycle(node Node, actuator *remedy.Actuator, settings SettingsSource, notifier Notifier) *Cycle {
	return &Cycle{
		node:     node,
		gossip:   gossip.NewBuilder(node),
		actuator: actuator,
		settings: settings,
		notifier: notifier,
		log:      slog.Default().With("component", "channels"),
	}
}

// Run executes a full cycle. A returned error means the node could not be
// queried; remediation and notification failures are part of the result.
func (c *Cycle) Run(ctx context.Context) (*Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "channels.cycle")
	defer span.End()

	settings := c.settings.Snapshot()
	res := &Result{RunID: uuid.NewString()}
	log := c.log.With("run_id", res.RunID)
	span.SetAttributes(attribute.String("run_id", res.RunID))

	start := time.Now()
	log.Info("Starting channel check")

	pre, err := c.fetch(ctx, settings, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	res.Node = pre.info
	res.Aliases = pre.aliases

	res.Pre = c.inspect(ctx, pre, settings, "pre")
	if res.Pre.Empty() {
		metrics.SlackingPeers.Set(0)
		log.Info("All good", "duration", time.Since(start))
		return res, nil
	}

	rctx, rspan := telemetry.Tracer().Start(ctx, "channels.remediate")
	rspan.SetAttributes(attribute.Int("peers", res.Pre.Len()))
	err = c.actuator.Remediate(rctx, res.Pre, domain.ConnectedPeers(pre.channels))
	rspan.End()
	if err != nil {
		return res, fmt.Errorf("remediate: %w", err)
	}

	post, err := c.fetch(ctx, settings, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	res.Post = c.inspect(ctx, post, settings, "post")
	metrics.SlackingPeers.Set(float64(res.Post.Len()))

	if res.Post.Empty() {
		log.Info("All slackers recovered", "peers", res.Pre.Len(), "duration", time.Since(start))
		return res, nil
	}

	res.Subject = ReportSubject
	res.Body = Render(res.Pre, res.Post, res.Aliases)

	log.Info("Sending notifications",
		"peers", res.Post.Len(),
		"findings", res.Post.Count(),
		"duration", time.Since(start),
	)
	if err := c.notifier.Dispatch(ctx, settings, res.Subject, res.Body); err != nil {
		log.Warn("Failed to send channel report", "error", err)
		res.DispatchErr = err
	} else {
		res.Dispatched = true
	}
	return res, nil
}

// Check fetches state and inspects it once without remediating or
// notifying. Body is filled when there are findings.
func (c *Cycle) Check(ctx context.Context) (*Result, error) {
	settings := c.settings.Snapshot()
	res := &Result{RunID: uuid.NewString()}

	st, err := c.fetch(ctx, settings, true)
	if err != nil {
		return res, err
	}
	res.Node = st.info
	res.Aliases = st.aliases
	res.Pre = c.inspect(ctx, st, settings, "check")

	if !res.Pre.Empty() {
		res.Subject = ReportSubject
		res.Body = Render(nil, res.Pre, res.Aliases)
	}
	return res, nil
}

func (c *Cycle) fetch(ctx context.Context, s config.Settings, withAliases bool) (state, error) {
	var st state
	var err error

	if st.channels, err = c.node.ListPeerChannels(ctx, ""); err != nil {
		return st, err
	}
	if st.info, err = c.node.GetInfo(ctx); err != nil {
		return st, err
	}
	metrics.NodeBlockHeight.Set(float64(st.info.BlockHeight))

	if withAliases {
		nodes, err := c.node.ListNodes(ctx, "")
		if err != nil {
			return st, err
		}
		st.aliases = domain.AliasMap(nodes)
	}

	if s.WatchGossip {
		if st.gossip, err = c.gossip.Build(ctx); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (c *Cycle) inspect(ctx context.Context, st state, s config.Settings, pass string) *domain.SlackerReport {
	_, span := telemetry.Tracer().Start(ctx, "channels.inspect")
	defer span.End()

	report := inspect.Inspect(st.channels, inspect.Params{
		Settings: s,
		Height:   st.info.BlockHeight,
		Network:  st.info.Network,
		Gossip:   st.gossip,
	})

	for kind, n := range report.CountByKind() {
		metrics.FindingsTotal.WithLabelValues(string(kind), pass).Add(float64(n))
	}
	span.SetAttributes(
		attribute.String("pass", pass),
		attribute.Int("channels", len(st.channels)),
		attribute.Int("slackers", report.Len()),
	)
	return report
}

// Render builds the alert body for the peers in post. Each peer block
// lists its pre findings (nil pre is allowed) followed by its post
// findings. Peers already reported by pre come first.
func Render(pre, post *domain.SlackerReport, aliases map[string]string) string {
	var order []string
	seen := make(map[string]bool)
	if pre != nil {
		for _, peer := range pre.Peers() {
			if post.Has(peer) {
				order = append(order, peer)
				seen[peer] = true
			}
		}
	}
	for _, peer := range post.Peers() {
		if !seen[peer] {
			order = append(order, peer)
		}
	}

	blocks := make([]string, 0, len(order))
	for _, peer := range order {
		var lines []string
		if pre != nil {
			lines = append(lines, pre.Lines(peer)...)
		}
		lines = append(lines, post.Lines(peer)...)
		blocks = append(blocks, domain.PeerBlock(peer, aliases[peer], lines))
	}
	return strings.Join(blocks, "\n")
}
