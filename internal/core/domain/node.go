package domain

// NodeInfo is the subset of getinfo the monitor relies on.
type NodeInfo struct {
	ID          string
	Alias       string
	Version     string
	Network     Network
	BlockHeight uint32
}

// Node is an entry of the node list.
type Node struct {
	ID    string
	Alias string
}

// AliasMap maps node ids to their advertised aliases. Nodes without an alias
// are left out.
func AliasMap(nodes []Node) map[string]string {
	aliases := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n.Alias == "" {
			continue
		}
		aliases[n.ID] = n.Alias
	}
	return aliases
}
