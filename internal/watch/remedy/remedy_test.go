package remedy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/rpc/provider"
)

type stubActions struct {
	calls         []string
	disconnectErr map[string]error
	connectErr    map[string]error
}

func (s *stubActions) Disconnect(_ context.Context, id string, force bool) error {
	s.calls = append(s.calls, fmt.Sprintf("disconnect %s force=%t", id, force))
	return s.disconnectErr[id]
}

func (s *stubActions) Connect(_ context.Context, id, host string, port uint16) error {
	s.calls = append(s.calls, fmt.Sprintf("connect %s %q %d", id, host, port))
	return s.connectErr[id]
}

type sleepRecorder struct {
	calls *[]string
	slept []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	*r.calls = append(*r.calls, fmt.Sprintf("sleep %s", d))
	return nil
}

func newReport(peers ...string) *domain.SlackerReport {
	r := domain.NewSlackerReport()
	for _, p := range peers {
		r.Add(p, domain.KindStatusError, "finding for %s", p)
	}
	return r
}

func TestRemediate_DisconnectThenReconnect(t *testing.T) {
	node := &stubActions{}
	rec := &sleepRecorder{calls: &node.calls}
	a := NewActuator(node, 10*time.Second, 30*time.Second).WithSleeper(rec.sleep)

	report := newReport("a", "b", "c")
	connected := map[string]bool{"a": true, "b": false}

	require.NoError(t, a.Remediate(context.Background(), report, connected))

	assert.Equal(t, []string{
		"disconnect a force=true",
		"sleep 10s",
		`connect a "" 0`,
		`connect b "" 0`,
		`connect c "" 0`,
		"sleep 30s",
	}, node.calls)
	assert.Equal(t, []string{"a", "b", "c"}, report.Peers())
	assert.Equal(t, 3, report.Count())
}

func TestRemediate_NoDisconnectSkipsFirstSettle(t *testing.T) {
	node := &stubActions{}
	rec := &sleepRecorder{calls: &node.calls}
	a := NewActuator(node, 10*time.Second, 30*time.Second).WithSleeper(rec.sleep)

	require.NoError(t, a.Remediate(context.Background(), newReport("a"), map[string]bool{}))
	assert.Equal(t, []time.Duration{30 * time.Second}, rec.slept)
}

func TestRemediate_EmptyReport(t *testing.T) {
	node := &stubActions{}
	rec := &sleepRecorder{calls: &node.calls}
	a := NewActuator(node, time.Second, time.Second).WithSleeper(rec.sleep)

	require.NoError(t, a.Remediate(context.Background(), domain.NewSlackerReport(), map[string]bool{"a": true}))
	assert.Empty(t, node.calls)
}

func TestRemediate_FailuresBecomeFindings(t *testing.T) {
	node := &stubActions{
		disconnectErr: map[string]error{
			"a": fmt.Errorf("disconnect: %w", &provider.RPCError{Code: -1, Message: "Peer not connected"}),
		},
		connectErr: map[string]error{
			"a": fmt.Errorf("connect: %w", &provider.RPCError{Code: 401, Message: "No addresses known"}),
			"b": fmt.Errorf("connect: %w", provider.ErrNotConnected),
		},
	}
	rec := &sleepRecorder{calls: &node.calls}
	a := NewActuator(node, time.Second, time.Second).WithSleeper(rec.sleep)

	report := newReport("a", "b")
	require.NoError(t, a.Remediate(context.Background(), report, map[string]bool{"a": true, "b": true}))

	assert.Equal(t, []string{
		"finding for a",
		"Could not disconnect: Peer not connected",
		"Could not connect: No addresses known",
	}, report.Lines("a"))
	assert.Equal(t, []string{
		"finding for b",
		"Could not connect: connect: node not connected",
	}, report.Lines("b"))
	assert.Equal(t, domain.KindConnectFailed, report.Findings("b")[1].Kind)
	assert.Equal(t, 2, report.Len())
}

func TestRemediate_Cancelled(t *testing.T) {
	node := &stubActions{}
	a := NewActuator(node, time.Second, time.Second).WithSleeper(func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	})

	err := a.Remediate(context.Background(), newReport("a"), map[string]bool{"a": true})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"disconnect a force=true"}, node.calls)
}
