package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/rpc/provider"
	"github.com/vietddude/vitality/internal/watch/metrics"
)

// Client is the typed gateway to the node. It never retries; callers
// decide what a failure means.
type Client struct {
	provider provider.Provider
}

// NewClient creates a new RPC client on top of p.
func NewClient(p provider.Provider) *Client {
	return &Client{provider: p}
}

// Provider returns the underlying transport.
func (c *Client) Provider() provider.Provider {
	return c.provider
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	name := c.provider.GetName()
	start := time.Now()

	raw, err := c.provider.Call(ctx, method, params)

	metrics.RPCCallsTotal.WithLabelValues(name, method).Inc()
	metrics.RPCLatency.WithLabelValues(name, method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(name, method, string(provider.ClassifyError(err))).Inc()
		return fmt.Errorf("%s: %w", method, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(name, method, string(provider.ErrorDecode)).Inc()
		return fmt.Errorf("%s: %w", method, &provider.DecodeError{Op: "decode result", Err: err})
	}
	return nil
}

// GetInfo returns the node's identity, network and block height.
func (c *Client) GetInfo(ctx context.Context) (domain.NodeInfo, error) {
	var resp getInfoResponse
	if err := c.call(ctx, "getinfo", nil, &resp); err != nil {
		return domain.NodeInfo{}, err
	}
	return domain.NodeInfo{
		ID:          resp.ID,
		Alias:       resp.Alias,
		Version:     resp.Version,
		Network:     domain.Network(resp.Network),
		BlockHeight: resp.BlockHeight,
	}, nil
}

// ListPeerChannels returns all local channels, or only those with peer when
// it is not empty.
func (c *Client) ListPeerChannels(ctx context.Context, peer string) ([]domain.PeerChannel, error) {
	params := map[string]any{}
	if peer != "" {
		params["id"] = peer
	}

	var resp listPeerChannelsResponse
	if err := c.call(ctx, "listpeerchannels", params, &resp); err != nil {
		return nil, err
	}

	channels := make([]domain.PeerChannel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		channels = append(channels, ch.toDomain())
	}
	return channels, nil
}

// ListNodes returns known nodes, or only id when it is not empty.
func (c *Client) ListNodes(ctx context.Context, id string) ([]domain.Node, error) {
	params := map[string]any{}
	if id != "" {
		params["id"] = id
	}

	var resp listNodesResponse
	if err := c.call(ctx, "listnodes", params, &resp); err != nil {
		return nil, err
	}

	nodes := make([]domain.Node, 0, len(resp.Nodes))
	for _, n := range resp.Nodes {
		nodes = append(nodes, domain.Node{ID: n.NodeID, Alias: n.Alias})
	}
	return nodes, nil
}

// ChannelFilter narrows ListChannels. Empty fields are not sent.
type ChannelFilter struct {
	ShortChannelID string
	Source         string
	Destination    string
}

// ListChannels returns gossip announcements matching filter.
func (c *Client) ListChannels(ctx context.Context, filter ChannelFilter) ([]domain.GossipRecord, error) {
	params := map[string]any{}
	if filter.ShortChannelID != "" {
		params["short_channel_id"] = filter.ShortChannelID
	}
	if filter.Source != "" {
		params["source"] = filter.Source
	}
	if filter.Destination != "" {
		params["destination"] = filter.Destination
	}

	var resp listChannelsResponse
	if err := c.call(ctx, "listchannels", params, &resp); err != nil {
		return nil, err
	}

	records := make([]domain.GossipRecord, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		records = append(records, domain.GossipRecord{
			ShortChannelID: ch.ShortChannelID,
			Source:         ch.Source,
			Destination:    ch.Destination,
			Active:         ch.Active,
			Public:         ch.Public,
		})
	}
	return records, nil
}

// Connect asks the node to connect to id. host and port are optional; with
// neither the node resolves the address itself.
func (c *Client) Connect(ctx context.Context, id, host string, port uint16) error {
	params := map[string]any{"id": id}
	if host != "" {
		params["host"] = host
	}
	if port != 0 {
		params["port"] = port
	}
	return c.call(ctx, "connect", params, nil)
}

// Disconnect drops the connection to id.
func (c *Client) Disconnect(ctx context.Context, id string, force bool) error {
	return c.call(ctx, "disconnect", map[string]any{"id": id, "force": force}, nil)
}

// SignMessage signs text with the node key and returns the zbase encoded
// signature.
func (c *Client) SignMessage(ctx context.Context, text string) (string, error) {
	var resp signMessageResponse
	if err := c.call(ctx, "signmessage", map[string]any{"message": text}, &resp); err != nil {
		return "", err
	}
	if resp.ZBase == "" {
		return "", fmt.Errorf("signmessage: %w", &provider.DecodeError{Op: "decode result", Err: fmt.Errorf("empty zbase")})
	}
	return resp.ZBase, nil
}
