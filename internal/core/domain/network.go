package domain

// Network is the bitcoin network the node runs on, as reported by getinfo.
type Network string

const (
	NetworkBitcoin  Network = "bitcoin"
	NetworkTestnet  Network = "testnet"
	NetworkTestnet4 Network = "testnet4"
	NetworkSignet   Network = "signet"
	NetworkRegtest  Network = "regtest"
)

// gossipFloors holds the number of gossiped channels the local gossip table
// must exceed before gossip-based findings are trusted.
var gossipFloors = map[Network]int{
	NetworkBitcoin:  20000,
	NetworkTestnet:  1000,
	NetworkTestnet4: 1000,
	NetworkSignet:   100,
	NetworkRegtest:  0,
}

// GossipFloor returns the warmth floor for a network. Unknown networks are
// treated like mainnet.
func GossipFloor(n Network) int {
	if floor, ok := gossipFloors[n]; ok {
		return floor
	}
	return gossipFloors[NetworkBitcoin]
}

// GossipWarm reports whether a gossip index of the given size is complete
// enough to judge channel announcements on network n.
func GossipWarm(n Network, size int) bool {
	floor := GossipFloor(n)
	return floor == 0 || size > floor
}
