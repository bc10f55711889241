// Package health provides loop health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a loop.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Loop names.
const (
	LoopChannels     = "channels"
	LoopReachability = "reachability"
)

// LoopStatus contains the health of one background loop.
type LoopStatus struct {
	Loop                string       `json:"loop"`
	Status              SystemStatus `json:"status"`
	Runs                int          `json:"runs"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastAttempt         time.Time    `json:"last_attempt,omitempty"`
	LastSuccess         time.Time    `json:"last_success,omitempty"`
	LastError           string       `json:"last_error,omitempty"`
	Slackers            int          `json:"slackers"`
	Interval            string       `json:"interval,omitempty"`
}

// NodeHealth is the transport view of the node.
type NodeHealth struct {
	Transport string  `json:"transport"`
	Available bool    `json:"available"`
	ErrorRate float64 `json:"error_rate"`
	Requests  int     `json:"requests"`
	LatencyMS int64   `json:"latency_ms"`
}

// DependencyStatus is the result of one backing service check.
type DependencyStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus  SystemStatus                `json:"system_status"`
	Node          *NodeHealth                 `json:"node,omitempty"`
	Loops         map[string]LoopStatus       `json:"loops"`
	Dependencies  map[string]DependencyStatus `json:"dependencies,omitempty"`
	ConfigVersion uint64                      `json:"config_version"`
}
