package domain

import (
	"fmt"
	"strings"
)

// FindingKind classifies a finding for metrics and filtering. The message is
// what ends up in alerts.
type FindingKind string

const (
	KindStatusError      FindingKind = "status_error"
	KindFeeDisagreement  FindingKind = "update_fee"
	KindHTLCStatus       FindingKind = "htlc_status"
	KindLostState        FindingKind = "lost_state"
	KindDisconnected     FindingKind = "disconnected"
	KindExpiringHTLC     FindingKind = "expiring_htlc"
	KindExpiredHTLC      FindingKind = "expired_htlc"
	KindNoGossip         FindingKind = "no_gossip"
	KindOneSidedGossip   FindingKind = "one_sided_gossip"
	KindInactiveGossip   FindingKind = "inactive_gossip"
	KindNonPublicGossip  FindingKind = "non_public_gossip"
	KindDisconnectFailed FindingKind = "disconnect_failed"
	KindConnectFailed    FindingKind = "connect_failed"
)

// Finding is one diagnostic attached to a peer.
type Finding struct {
	Kind    FindingKind
	Message string
}

func (f Finding) String() string {
	return f.Message
}

// SlackerReport collects findings per peer. Peers keep the order in which
// they were first reported and findings are only ever appended.
type SlackerReport struct {
	order    []string
	findings map[string][]Finding
}

// NewSlackerReport returns an empty report.
func NewSlackerReport() *SlackerReport {
	return &SlackerReport{findings: make(map[string][]Finding)}
}

// Add appends a finding for peer.
func (r *SlackerReport) Add(peer string, kind FindingKind, format string, args ...any) {
	if _, ok := r.findings[peer]; !ok {
		r.order = append(r.order, peer)
	}
	r.findings[peer] = append(r.findings[peer], Finding{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

// Peers returns the reported peers in discovery order.
func (r *SlackerReport) Peers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Findings returns the findings of peer.
func (r *SlackerReport) Findings(peer string) []Finding {
	return r.findings[peer]
}

// Has reports whether peer has at least one finding.
func (r *SlackerReport) Has(peer string) bool {
	_, ok := r.findings[peer]
	return ok
}

// Len is the number of slacking peers.
func (r *SlackerReport) Len() int {
	return len(r.order)
}

// Empty reports whether no peer has findings.
func (r *SlackerReport) Empty() bool {
	return len(r.order) == 0
}

// Count is the total number of findings across peers.
func (r *SlackerReport) Count() int {
	n := 0
	for _, fs := range r.findings {
		n += len(fs)
	}
	return n
}

// CountByKind returns the number of findings per kind.
func (r *SlackerReport) CountByKind() map[FindingKind]int {
	counts := make(map[FindingKind]int)
	for _, fs := range r.findings {
		for _, f := range fs {
			counts[f.Kind]++
		}
	}
	return counts
}

// Lines renders the findings of peer as plain strings.
func (r *SlackerReport) Lines(peer string) []string {
	fs := r.findings[peer]
	lines := make([]string, len(fs))
	for i, f := range fs {
		lines[i] = f.Message
	}
	return lines
}

// PeerBlock renders one alert block: "<peer>(<alias>):\n<lines>\n".
func PeerBlock(peer, alias string, lines []string) string {
	var b strings.Builder
	b.WriteString(peer)
	if alias != "" {
		b.WriteString("(")
		b.WriteString(alias)
		b.WriteString(")")
	}
	b.WriteString(":\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	return b.String()
}
