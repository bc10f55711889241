package domain

// GossipRecord is one directional channel announcement from the gossip table.
type GossipRecord struct {
	ShortChannelID string
	Source         string
	Destination    string
	Active         bool
	Public         bool
}

// GossipIndex groups gossip records by short channel id. A channel has zero,
// one (one-sided) or two (fully announced) records.
type GossipIndex map[string][]GossipRecord

// NewGossipIndex indexes records by short channel id, keeping every record.
func NewGossipIndex(records []GossipRecord) GossipIndex {
	idx := make(GossipIndex, len(records)/2+1)
	for _, r := range records {
		idx[r.ShortChannelID] = append(idx[r.ShortChannelID], r)
	}
	return idx
}

// Size is the number of distinct channels in the index.
func (g GossipIndex) Size() int {
	return len(g)
}
