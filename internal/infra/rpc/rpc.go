// Package rpc provides the typed gateway to a Core Lightning node.
//
// # Quick Start
//
//	p, err := rpc.NewProvider(cfg.Node)
//	if err != nil { ... }
//	client := rpc.NewClient(p)
//	info, err := client.GetInfo(ctx)
//
// # Package Structure
//
//   - provider/ - transports (unix socket JSON-RPC, clnrest) and error types
//
// Most provider types are re-exported at the root level for convenience.
package rpc

import (
	"fmt"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/infra/rpc/provider"
)

// Provider is the transport interface to the node.
type Provider = provider.Provider

// RPCError is an error answered by the node.
type RPCError = provider.RPCError

// IsRPCError reports whether err was answered by the node.
var IsRPCError = provider.IsRPCError

// NewProvider builds the transport selected in cfg.
func NewProvider(cfg config.NodeConfig) (Provider, error) {
	switch cfg.Transport {
	case config.TransportSocket, "":
		return provider.NewSocketProvider(cfg.SocketPath, cfg.Timeout), nil
	case config.TransportREST:
		return provider.NewHTTPProvider(cfg.RestURL, cfg.Rune, cfg.Timeout, cfg.Insecure), nil
	default:
		return nil, fmt.Errorf("unknown node transport %q", cfg.Transport)
	}
}
