// Package gossip builds the index of channel announcements seen by the node.
package gossip

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/rpc"
	"github.com/vietddude/vitality/internal/watch/metrics"
)

// Source lists gossip announcements.
type Source interface {
	ListChannels(ctx context.Context, filter rpc.ChannelFilter) ([]domain.GossipRecord, error)
}

// Builder fetches the full gossip table and indexes it.
type Builder struct {
	src Source
}

func NewBuilder(src Source) *Builder {
	return &Builder{src: src}
}

// Build returns every known announcement grouped by short channel id.
func (b *Builder) Build(ctx context.Context) (domain.GossipIndex, error) {
	start := time.Now()

	records, err := b.src.ListChannels(ctx, rpc.ChannelFilter{})
	if err != nil {
		return nil, fmt.Errorf("build gossip index: %w", err)
	}

	idx := domain.NewGossipIndex(records)
	metrics.GossipIndexSize.Set(float64(idx.Size()))
	slog.Debug("Built gossip index",
		"channels", idx.Size(),
		"records", len(records),
		"duration", time.Since(start),
	)
	return idx, nil
}
