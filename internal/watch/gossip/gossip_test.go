package gossip

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/rpc"
)

type stubSource struct {
	records []domain.GossipRecord
	err     error
	filter  rpc.ChannelFilter
}

func (s *stubSource) ListChannels(_ context.Context, f rpc.ChannelFilter) ([]domain.GossipRecord, error) {
	s.filter = f
	return s.records, s.err
}

func TestBuilder_Build(t *testing.T) {
	src := &stubSource{records: []domain.GossipRecord{
		{ShortChannelID: "1x1x1", Source: "a", Destination: "b", Active: true},
		{ShortChannelID: "1x1x1", Source: "b", Destination: "a", Active: true},
		{ShortChannelID: "2x2x2", Source: "a", Destination: "c"},
	}}

	idx, err := NewBuilder(src).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, rpc.ChannelFilter{}, src.filter, "index must not be filtered")
	assert.Equal(t, 2, idx.Size())
	assert.Len(t, idx["1x1x1"], 2)
	assert.Len(t, idx["2x2x2"], 1)
	assert.Empty(t, idx["3x3x3"])
}

func TestBuilder_PropagatesError(t *testing.T) {
	_, err := NewBuilder(&stubSource{err: errors.New("socket closed")}).Build(context.Background())
	assert.ErrorContains(t, err, "socket closed")
}
