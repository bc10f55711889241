// Package provider implements transports to a Core Lightning node.
//
// This package contains:
//   - Provider interface: a single JSON-RPC style call against the node
//   - SocketProvider: JSON-RPC 2.0 over the lightning-rpc unix socket
//   - HTTPProvider: clnrest (POST /v1/{method} authenticated by a rune)
//   - BaseProvider: shared health tracking
package provider

import (
	"context"
	"encoding/json"
	"time"
)

// Provider defines the transport used by the typed gateway. Implementations
// do not retry.
type Provider interface {
	// GetName returns the transport identifier (e.g., "socket", "rest").
	GetName() string

	// GetHealth returns current health metrics.
	GetHealth() HealthStatus

	// IsAvailable reports whether recent calls mostly succeeded.
	IsAvailable() bool

	// Call invokes method with params (a JSON object or nil) and returns the
	// raw result. Node-side rejections are returned as *RPCError.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Close cleans up resources.
	Close() error
}

// HealthStatus represents the health state of a transport.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	Requests      int           `json:"requests"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// encodeParams renders params as a JSON object. CLN accepts named
// parameters, and an empty object for none.
func encodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, &DecodeError{Op: "marshal params", Err: err}
	}
	return data, nil
}
