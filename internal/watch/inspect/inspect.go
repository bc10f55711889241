// Package inspect classifies peer channels into per-peer findings.
//
// Five rules are applied to every live channel (CHANNELD_NORMAL or
// CHANNELD_AWAITING_SPLICE):
//
//   - status lines: errors, fee disagreement, stuck htlcs, lost state
//   - disconnection: a disconnected peer that is not trying to reconnect
//   - expiring htlcs: htlcs closer to expiry than the configured threshold
//   - gossip consistency: missing, one-sided, inactive or non-public
//     announcements for connected channels
//
// Rules are independent and additive. Absent fields never produce
// findings on their own.
package inspect

import (
	"log/slog"
	"strings"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
)

// Params is everything an inspection pass reads besides the channels.
type Params struct {
	Settings config.Settings
	Height   uint32
	Network  domain.Network
	// Gossip is nil when gossip is not watched this cycle.
	Gossip domain.GossipIndex
}

type pass struct {
	p        Params
	report   *domain.SlackerReport
	specific map[string]bool
	warm     bool
	log      *slog.Logger
}

// Inspect runs every enabled rule over channels and returns a fresh report.
func Inspect(channels []domain.PeerChannel, p Params) *domain.SlackerReport {
	ps := &pass{
		p:        p,
		report:   domain.NewSlackerReport(),
		specific: make(map[string]bool),
		log:      slog.Default().With("component", "inspect"),
	}

	if p.Settings.WatchGossip && p.Gossip != nil {
		ps.warm = domain.GossipWarm(p.Network, p.Gossip.Size())
		if !ps.warm {
			ps.log.Warn("Gossip store still too empty, skipping gossip checks",
				"network", p.Network,
				"size", p.Gossip.Size(),
				"floor", domain.GossipFloor(p.Network),
			)
		}
	}

	for _, ch := range channels {
		if !ch.State.Inspected() || ch.PeerID == "" {
			continue
		}
		ps.channel(ch)
	}
	return ps.report
}

func (ps *pass) add(ch domain.PeerChannel, kind domain.FindingKind, format string, args ...any) {
	ps.report.Add(ch.PeerID, kind, format, args...)
	findings := ps.report.Findings(ch.PeerID)
	ps.log.Warn("Channel finding",
		"peer", ch.PeerID,
		"channel", ch.Label(),
		"kind", kind,
		"finding", findings[len(findings)-1].Message,
	)
}

func (ps *pass) channel(ch domain.PeerChannel) {
	s := ps.p.Settings

	if s.WatchChannels {
		reconnecting := ps.statusLines(ch)
		if ch.IsDisconnected() && !reconnecting && !ps.specific[ch.PeerID] {
			ps.add(ch, domain.KindDisconnected,
				"Found disconnected peer that does not want to reconnect. Status instead is: %s",
				strings.Join(ch.Status, "\n"))
		}
	}

	if s.ExpiringHTLCs > 0 {
		ps.htlcs(ch)
	}

	if ps.warm {
		ps.gossip(ch)
	}
}

// statusLines applies the status-line rule and reports whether the node
// says it will reconnect on its own.
func (ps *pass) statusLines(ch domain.PeerChannel) (reconnecting bool) {
	detail := ps.p.Settings.WatchGossip

	for _, status := range ch.Status {
		lower := strings.ToLower(status)

		if strings.Contains(lower, "error") {
			ps.add(ch, domain.KindStatusError,
				"Found peer with error in status but not in closing state. Status: %s", status)
			ps.specific[ch.PeerID] = true
		}
		if detail && strings.Contains(lower, "update_fee") {
			ps.add(ch, domain.KindFeeDisagreement, "Can't agree on fee. Status: %s", status)
			ps.specific[ch.PeerID] = true
		}
		if detail && strings.Contains(lower, "htlc") {
			ps.add(ch, domain.KindHTLCStatus, "Status: %s", status)
			ps.specific[ch.PeerID] = true
		}
		if strings.Contains(lower, "will attempt reconnect") {
			reconnecting = true
		}
	}

	if detail && ch.LostState {
		ps.add(ch, domain.KindLostState,
			"Lost state. Status: we are fallen behind i.e. lost some channel state")
		ps.specific[ch.PeerID] = true
	}
	return reconnecting
}

func (ps *pass) htlcs(ch domain.PeerChannel) {
	threshold := int64(ps.p.Settings.ExpiringHTLCs)
	height := int64(ps.p.Height)

	for _, h := range ch.HTLCs {
		if !h.HasExpiry {
			continue
		}
		remaining := int64(h.Expiry) - height
		switch {
		case remaining < 0:
			ps.add(ch, domain.KindExpiredHTLC,
				"Found channel %s with expired htlc: %d blocks past expiry", ch.Label(), -remaining)
		case remaining < threshold:
			ps.add(ch, domain.KindExpiringHTLC,
				"Found channel %s with close to expiry htlc: %d blocks", ch.Label(), remaining)
		}
	}
}

func (ps *pass) gossip(ch domain.PeerChannel) {
	if !ch.IsConnected() || ch.ShortChannelID == "" {
		return
	}

	records := ps.p.Gossip[ch.ShortChannelID]
	switch len(records) {
	case 0:
		ps.add(ch, domain.KindNoGossip, "Found channel %s with no gossip", ch.ShortChannelID)
	case 1:
		ps.add(ch, domain.KindOneSidedGossip,
			"Found connected channel %s with one-sided gossip", ch.ShortChannelID)
	default:
		for _, side := range records {
			if !side.Active {
				ps.add(ch, domain.KindInactiveGossip,
					"Found connected channel %s with inactive gossip", ch.ShortChannelID)
			}
			if ch.IsPublic() && !side.Public {
				ps.add(ch, domain.KindNonPublicGossip,
					"Found public channel %s with non-public gossip", ch.ShortChannelID)
			}
		}
	}
}
