package domain

// ChannelState is the lifecycle state of a channel as reported by the node.
type ChannelState string

const (
	StateOpeningd         ChannelState = "OPENINGD"
	StateAwaitingLockin   ChannelState = "CHANNELD_AWAITING_LOCKIN"
	StateNormal           ChannelState = "CHANNELD_NORMAL"
	StateShuttingDown     ChannelState = "CHANNELD_SHUTTING_DOWN"
	StateClosingSigexchg  ChannelState = "CLOSINGD_SIGEXCHANGE"
	StateClosingComplete  ChannelState = "CLOSINGD_COMPLETE"
	StateAwaitingUnilat   ChannelState = "AWAITING_UNILATERAL"
	StateFundingSpendSeen ChannelState = "FUNDING_SPEND_SEEN"
	StateOnchain          ChannelState = "ONCHAIN"
	StateDualopendOpen    ChannelState = "DUALOPEND_OPEN_INIT"
	StateAwaitingSplice   ChannelState = "CHANNELD_AWAITING_SPLICE"
)

// Inspected reports whether channels in this state are subject to health
// inspection. Only live channels are.
func (s ChannelState) Inspected() bool {
	return s == StateNormal || s == StateAwaitingSplice
}

// HTLC is an in-flight payment on a channel.
type HTLC struct {
	ID     uint64
	Expiry uint32
	// HasExpiry is false when the node omitted the expiry field.
	HasExpiry bool
}

// PeerChannel is a snapshot of one local channel with a peer.
//
// Connected and Private are nil when the node did not report them; callers
// must treat nil as unknown.
type PeerChannel struct {
	PeerID         string
	ChannelID      string
	ShortChannelID string
	State          ChannelState
	Connected      *bool
	Private        *bool
	Status         []string
	HTLCs          []HTLC
	LostState      bool
}

// Label returns the identifier used in findings: the short channel id when
// the channel is announced, the full channel id otherwise.
func (c PeerChannel) Label() string {
	if c.ShortChannelID != "" {
		return c.ShortChannelID
	}
	if c.ChannelID != "" {
		return c.ChannelID
	}
	return "unknown"
}

// IsConnected is true only when the node positively reported the peer as connected.
func (c PeerChannel) IsConnected() bool {
	return c.Connected != nil && *c.Connected
}

// IsDisconnected is true only when the node positively reported the peer as disconnected.
func (c PeerChannel) IsDisconnected() bool {
	return c.Connected != nil && !*c.Connected
}

// IsPublic is true only when the node positively reported the channel as non-private.
func (c PeerChannel) IsPublic() bool {
	return c.Private != nil && !*c.Private
}

// ConnectedPeers maps every peer that appears in channels to whether the
// node currently reports it as connected.
func ConnectedPeers(channels []PeerChannel) map[string]bool {
	peers := make(map[string]bool, len(channels))
	for _, ch := range channels {
		if ch.PeerID == "" {
			continue
		}
		peers[ch.PeerID] = peers[ch.PeerID] || ch.IsConnected()
	}
	return peers
}
