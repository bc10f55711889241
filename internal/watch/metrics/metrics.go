package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks node RPC calls per transport and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_rpc_calls_total",
			Help: "Total number of node RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks failed node RPC calls
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_rpc_errors_total",
			Help: "Total number of node RPC errors",
		},
		[]string{"provider", "method", "error_type"},
	)

	// RPCLatency tracks node RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitality_rpc_latency_seconds",
			Help:    "Node RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// CyclesTotal counts loop iterations by outcome (ok, error)
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_cycles_total",
			Help: "Total number of loop iterations by outcome",
		},
		[]string{"loop", "outcome"},
	)

	// CycleDuration tracks how long a loop iteration took
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitality_cycle_duration_seconds",
			Help:    "Duration of one loop iteration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"loop"},
	)

	// FindingsTotal counts findings by kind and inspection pass (pre, post)
	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_findings_total",
			Help: "Total number of channel findings",
		},
		[]string{"kind", "pass"},
	)

	// SlackingPeers is the number of peers in the last dispatched report
	SlackingPeers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitality_slacking_peers",
			Help: "Peers with unresolved findings after the last channel check",
		},
	)

	// RemediationsTotal counts disconnect/connect attempts by outcome
	RemediationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_remediations_total",
			Help: "Total number of remediation actions",
		},
		[]string{"action", "outcome"},
	)

	// GossipIndexSize is the number of channels in the last gossip index
	GossipIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitality_gossip_index_size",
			Help: "Number of distinct channels in the gossip index",
		},
	)

	// NodeBlockHeight is the block height reported by the node
	NodeBlockHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitality_node_block_height",
			Help: "Block height reported by the node",
		},
	)

	// ProbeFailureStreak is the number of consecutive reachability failures
	ProbeFailureStreak = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitality_probe_failure_streak",
			Help: "Consecutive failed reachability probes",
		},
	)

	// NotificationsTotal counts alert deliveries per sink and outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_notifications_total",
			Help: "Total number of alert deliveries",
		},
		[]string{"sink", "outcome"},
	)
)
