package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// SocketProvider implements Provider for JSON-RPC 2.0 over the node's
// lightning-rpc unix socket. Each call uses its own connection.
type SocketProvider struct {
	*BaseProvider
	path    string
	timeout time.Duration
	nextID  atomic.Uint64
}

// NewSocketProvider creates a provider for the socket at path.
func NewSocketProvider(path string, timeout time.Duration) *SocketProvider {
	return &SocketProvider{
		BaseProvider: NewBaseProvider("socket"),
		path:         path,
		timeout:      timeout,
	}
}

type socketRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type socketResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call makes a single JSON-RPC call.
func (p *SocketProvider) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	result, err := p.call(ctx, method, params)
	p.Record(time.Since(start), err)
	return result, err
}

func (p *SocketProvider) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	encoded, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrNotConnected, p.path, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	id := fmt.Sprintf("vitality:%s#%d", method, p.nextID.Add(1))
	req := socketRequest{JSONRPC: "2.0", ID: id, Method: method, Params: encoded}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	var resp socketResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("read response: %w", ctxErr)
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return nil, &DecodeError{Op: "parse response", Err: err}
	}

	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.ID != id {
		return nil, &DecodeError{Op: "parse response", Err: fmt.Errorf("id mismatch: got %q want %q", resp.ID, id)}
	}
	return resp.Result, nil
}

// Close cleans up resources.
func (p *SocketProvider) Close() error {
	return nil
}
