package rpc

import "github.com/vietddude/vitality/internal/core/domain"

// Response shapes as returned by Core Lightning. Fields the node may omit
// are pointers so absence survives decoding.

type getInfoResponse struct {
	ID          string `json:"id"`
	Alias       string `json:"alias"`
	Version     string `json:"version"`
	Network     string `json:"network"`
	BlockHeight uint32 `json:"blockheight"`
}

type listPeerChannelsResponse struct {
	Channels []peerChannel `json:"channels"`
}

type peerChannel struct {
	PeerID         string   `json:"peer_id"`
	PeerConnected  *bool    `json:"peer_connected"`
	State          string   `json:"state"`
	ShortChannelID string   `json:"short_channel_id"`
	ChannelID      string   `json:"channel_id"`
	Private        *bool    `json:"private"`
	Status         []string `json:"status"`
	HTLCs          []htlc   `json:"htlcs"`
	LostState      *bool    `json:"lost_state"`
}

type htlc struct {
	ID     uint64  `json:"id"`
	Expiry *uint32 `json:"expiry"`
}

type listNodesResponse struct {
	Nodes []struct {
		NodeID string `json:"nodeid"`
		Alias  string `json:"alias"`
	} `json:"nodes"`
}

type listChannelsResponse struct {
	Channels []struct {
		Source         string `json:"source"`
		Destination    string `json:"destination"`
		ShortChannelID string `json:"short_channel_id"`
		Public         bool   `json:"public"`
		Active         bool   `json:"active"`
	} `json:"channels"`
}

type signMessageResponse struct {
	Signature string `json:"signature"`
	RecID     string `json:"recid"`
	ZBase     string `json:"zbase"`
}

func (c peerChannel) toDomain() domain.PeerChannel {
	out := domain.PeerChannel{
		PeerID:         c.PeerID,
		ChannelID:      c.ChannelID,
		ShortChannelID: c.ShortChannelID,
		State:          domain.ChannelState(c.State),
		Connected:      c.PeerConnected,
		Private:        c.Private,
		Status:         c.Status,
		LostState:      c.LostState != nil && *c.LostState,
	}
	for _, h := range c.HTLCs {
		dh := domain.HTLC{ID: h.ID}
		if h.Expiry != nil {
			dh.Expiry = *h.Expiry
			dh.HasExpiry = true
		}
		out.HTLCs = append(out.HTLCs, dh)
	}
	return out
}
