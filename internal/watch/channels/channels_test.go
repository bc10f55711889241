package channels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/rpc"
	"github.com/vietddude/vitality/internal/infra/rpc/provider"
	"github.com/vietddude/vitality/internal/watch/health"
	"github.com/vietddude/vitality/internal/watch/remedy"
)

// =============================================================================
// Stubs
// =============================================================================

type stubNode struct {
	mu sync.Mutex

	// channels is served in order; the last entry repeats.
	channels    [][]domain.PeerChannel
	channelCall int
	info        domain.NodeInfo
	nodes       []domain.Node
	gossip      []domain.GossipRecord

	infoErr    error
	connectErr error

	calls []string
}

func (s *stubNode) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *stubNode) GetInfo(context.Context) (domain.NodeInfo, error) {
	s.record("getinfo")
	return s.info, s.infoErr
}

func (s *stubNode) ListPeerChannels(context.Context, string) ([]domain.PeerChannel, error) {
	s.record("listpeerchannels")
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.channelCall
	if i >= len(s.channels) {
		i = len(s.channels) - 1
	}
	s.channelCall++
	if i < 0 {
		return nil, nil
	}
	return s.channels[i], nil
}

func (s *stubNode) ListNodes(context.Context, string) ([]domain.Node, error) {
	s.record("listnodes")
	return s.nodes, nil
}

func (s *stubNode) ListChannels(context.Context, rpc.ChannelFilter) ([]domain.GossipRecord, error) {
	s.record("listchannels")
	return s.gossip, nil
}

func (s *stubNode) Disconnect(_ context.Context, id string, _ bool) error {
	s.record("disconnect " + id)
	return nil
}

func (s *stubNode) Connect(_ context.Context, id, _ string, _ uint16) error {
	s.record("connect " + id)
	return s.connectErr
}

type sentAlert struct {
	subject, body string
}

type stubNotifier struct {
	sent []sentAlert
	err  error
}

func (s *stubNotifier) Dispatch(_ context.Context, _ config.Settings, subject, body string) error {
	s.sent = append(s.sent, sentAlert{subject, body})
	return s.err
}

type staticSettings config.Settings

func (s staticSettings) Snapshot() config.Settings { return config.Settings(s).Clone() }

func noSleep(context.Context, time.Duration) error { return nil }

func boolPtr(b bool) *bool { return &b }

func disconnected(peer string) domain.PeerChannel {
	return domain.PeerChannel{
		PeerID:         peer,
		ShortChannelID: "1x1x1",
		State:          domain.StateNormal,
		Connected:      boolPtr(false),
		Private:        boolPtr(false),
		Status:         []string{"foo"},
	}
}

func healthy(peer string) domain.PeerChannel {
	ch := disconnected(peer)
	ch.Connected = boolPtr(true)
	ch.Status = nil
	return ch
}

func newCycle(node *stubNode, notifier *stubNotifier, s config.Settings) *Cycle {
	actuator := remedy.NewActuator(node, 10*time.Second, 30*time.Second).WithSleeper(noSleep)
	return NewCycle(node, actuator, staticSettings(s), notifier)
}

const slackerLine = "Found disconnected peer that does not want to reconnect. Status instead is: foo"

// =============================================================================
// Cycle
// =============================================================================

func TestCycle_AllGoodSkipsRemediation(t *testing.T) {
	node := &stubNode{
		channels: [][]domain.PeerChannel{{healthy("P")}},
		info:     domain.NodeInfo{BlockHeight: 800000, Network: domain.NetworkBitcoin},
	}
	notifier := &stubNotifier{}

	res, err := newCycle(node, notifier, config.DefaultSettings()).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Pre.Empty())
	assert.Nil(t, res.Post)
	assert.Empty(t, notifier.sent)
	assert.Equal(t, []string{"listpeerchannels", "getinfo", "listnodes"}, node.calls)
	assert.NotEmpty(t, res.RunID)
}

func TestCycle_RecoveredPeerIsNotReported(t *testing.T) {
	node := &stubNode{
		channels: [][]domain.PeerChannel{{disconnected("P")}, {healthy("P")}},
	}
	notifier := &stubNotifier{}

	res, err := newCycle(node, notifier, config.DefaultSettings()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Pre.Len())
	require.NotNil(t, res.Post)
	assert.True(t, res.Post.Empty())
	assert.Empty(t, notifier.sent)
	assert.Equal(t, []string{
		"listpeerchannels", "getinfo", "listnodes",
		"connect P",
		"listpeerchannels", "getinfo",
	}, node.calls)
}

func TestCycle_PersistentSlackerIsReported(t *testing.T) {
	node := &stubNode{
		channels:   [][]domain.PeerChannel{{disconnected("P"), healthy("Q")}},
		nodes:      []domain.Node{{ID: "P", Alias: "alice"}, {ID: "Q", Alias: "bob"}},
		connectErr: fmt.Errorf("connect: %w", &provider.RPCError{Code: 401, Message: "No address known"}),
	}
	notifier := &stubNotifier{}

	res, err := newCycle(node, notifier, config.DefaultSettings()).Run(context.Background())
	require.NoError(t, err)

	want := "P(alice):\n" +
		slackerLine + "\n" +
		"Could not connect: No address known\n" +
		slackerLine + "\n"

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Channel check report", notifier.sent[0].subject)
	assert.Equal(t, want, notifier.sent[0].body)
	assert.True(t, res.Dispatched)
	assert.Equal(t, 1, res.Remaining().Len())
}

func TestCycle_ConnectedSlackerIsDisconnectedFirst(t *testing.T) {
	bad := healthy("P")
	bad.Status = []string{"Error: bad reestablish"}

	node := &stubNode{channels: [][]domain.PeerChannel{{bad}, {healthy("P")}}}
	_, err := newCycle(node, &stubNotifier{}, config.DefaultSettings()).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, node.calls, "disconnect P")
	assert.Contains(t, node.calls, "connect P")
}

func TestCycle_DispatchFailureDoesNotFailCycle(t *testing.T) {
	node := &stubNode{channels: [][]domain.PeerChannel{{disconnected("P")}}}
	notifier := &stubNotifier{err: errors.New("smtp: auth failed")}

	res, err := newCycle(node, notifier, config.DefaultSettings()).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Dispatched)
	assert.EqualError(t, res.DispatchErr, "smtp: auth failed")
}

func TestCycle_FetchFailure(t *testing.T) {
	node := &stubNode{
		channels: [][]domain.PeerChannel{{disconnected("P")}},
		infoErr:  fmt.Errorf("getinfo: %w", provider.ErrNotConnected),
	}
	notifier := &stubNotifier{}

	_, err := newCycle(node, notifier, config.DefaultSettings()).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrNotConnected)
	assert.Empty(t, notifier.sent)
}

func TestCycle_WatchGossipBuildsIndex(t *testing.T) {
	node := &stubNode{
		channels: [][]domain.PeerChannel{{healthy("P")}},
		info:     domain.NodeInfo{Network: domain.NetworkRegtest},
		gossip: []domain.GossipRecord{
			{ShortChannelID: "1x1x1", Active: true, Public: true},
			{ShortChannelID: "1x1x1", Active: true, Public: true},
		},
	}
	s := config.DefaultSettings()
	s.WatchGossip = true

	res, err := newCycle(node, &stubNotifier{}, s).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Pre.Empty())
	assert.Contains(t, node.calls, "listchannels")
}

func TestCycle_CheckDoesNotRemediate(t *testing.T) {
	node := &stubNode{
		channels: [][]domain.PeerChannel{{disconnected("P")}},
		nodes:    []domain.Node{{ID: "P"}},
	}
	notifier := &stubNotifier{}

	res, err := newCycle(node, notifier, config.DefaultSettings()).Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "P:\n"+slackerLine+"\n", res.Body)
	assert.Empty(t, notifier.sent)
	assert.Equal(t, []string{"listpeerchannels", "getinfo", "listnodes"}, node.calls)
}

func TestRender_Ordering(t *testing.T) {
	pre := domain.NewSlackerReport()
	pre.Add("b", domain.KindStatusError, "b1")
	pre.Add("a", domain.KindStatusError, "a1")
	pre.Add("gone", domain.KindStatusError, "g1")

	post := domain.NewSlackerReport()
	post.Add("c", domain.KindNoGossip, "c2")
	post.Add("a", domain.KindStatusError, "a2")
	post.Add("b", domain.KindStatusError, "b2")

	got := Render(pre, post, map[string]string{"a": "alpha"})
	assert.Equal(t, "b:\nb1\nb2\n\na(alpha):\na1\na2\n\nc:\nc2\n", got)
}

// =============================================================================
// Loop
// =============================================================================

type recordingMonitor struct {
	outcomes []health.Outcome
}

func (r *recordingMonitor) Record(loop string, o health.Outcome) {
	if loop == health.LoopChannels {
		r.outcomes = append(r.outcomes, o)
	}
}

func TestLoop_ErrorIsAlertedAndLoopContinues(t *testing.T) {
	node := &stubNode{
		channels: [][]domain.PeerChannel{{healthy("P")}},
		infoErr:  fmt.Errorf("getinfo: %w", provider.ErrNotConnected),
	}
	notifier := &stubNotifier{}
	rec := &recordingMonitor{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept []time.Duration
	sleeper := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 3 {
			cancel()
			return context.Canceled
		}
		return nil
	}

	loop := NewLoop(newCycle(node, notifier, config.DefaultSettings()), time.Hour, 10*time.Minute, rec).
		WithSleeper(sleeper)

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []time.Duration{10 * time.Minute, time.Hour, time.Hour}, slept)
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "Channel check error", notifier.sent[0].subject)
	assert.Equal(t, "getinfo: node not connected", notifier.sent[0].body)
	require.Len(t, rec.outcomes, 2)
	assert.Error(t, rec.outcomes[0].Err)
	assert.Equal(t, time.Hour, rec.outcomes[0].Next)
}

func TestLoop_NoInitialDelay(t *testing.T) {
	node := &stubNode{channels: [][]domain.PeerChannel{{disconnected("P")}, {healthy("P")}}}
	rec := &recordingMonitor{}

	var slept []time.Duration
	sleeper := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return context.Canceled
	}

	loop := NewLoop(newCycle(node, &stubNotifier{}, config.DefaultSettings()), time.Hour, 0, rec).
		WithSleeper(sleeper)
	assert.ErrorIs(t, loop.Run(context.Background()), context.Canceled)

	assert.Equal(t, []time.Duration{time.Hour}, slept)
	require.Len(t, rec.outcomes, 1)
	assert.NoError(t, rec.outcomes[0].Err)
	assert.Equal(t, 0, rec.outcomes[0].Slackers)
}
