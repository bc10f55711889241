package config

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/vitality/internal/infra/storage"
)

func TestParseOptionName(t *testing.T) {
	for _, id := range Options() {
		got, err := ParseOptionName(id.Name())
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	_, err := ParseOptionName("vitality-nope")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		id      OptionID
		raw     any
		want    Value
		wantErr bool
	}{
		{"bool", OptAmboss, true, BoolValue(true), false},
		{"bool string", OptWatchGossip, "false", BoolValue(false), false},
		{"bool garbage", OptWatchChannels, "yes", Value{}, true},
		{"bool number", OptWatchChannels, float64(1), Value{}, true},
		{"int json", OptExpiringHTLCs, float64(42), IntValue(42), false},
		{"int json number", OptExpiringHTLCs, json.Number("7"), IntValue(7), false},
		{"int string", OptSMTPPort, "587", IntValue(587), false},
		{"int negative", OptExpiringHTLCs, "-1", Value{}, true},
		{"int fraction", OptExpiringHTLCs, 1.5, Value{}, true},
		{"port too large", OptSMTPPort, float64(70000), Value{}, true},
		{"string", OptEmailTo, "ops@example.com", StringValue("ops@example.com"), false},
		{"string not string", OptEmailTo, true, Value{}, true},
		{"list", OptTelegramUsernames, " alice ,bob,", ListValue([]string{"alice", "bob"}), false},
		{"list dedup", OptTelegramUsernames, "alice,bob,alice", ListValue([]string{"alice", "bob"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.id, tt.raw)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidValue), "expected ErrInvalidValue, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettings_ApplyRejectsKindMismatch(t *testing.T) {
	var s Settings
	err := s.Apply(OptAmboss, StringValue("true"))
	assert.ErrorIs(t, err, ErrInvalidValue)
}

type memOverrides struct {
	mu    sync.Mutex
	saved map[string]string
	err   error
}

func (m *memOverrides) SaveOption(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = make(map[string]string)
	}
	m.saved[name] = value
	return nil
}

func (m *memOverrides) LoadOptions(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out, m.err
}

func (m *memOverrides) DeleteOption(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saved[name]; !ok {
		return storage.ErrOptionNotFound
	}
	delete(m.saved, name)
	return nil
}

func TestStore_SetPersistsAndSnapshotsAreIsolated(t *testing.T) {
	overrides := &memOverrides{}
	store := NewStore(DefaultSettings(), overrides)

	before := store.Snapshot()
	_, err := store.Set(context.Background(), "vitality-expiring-htlcs", "30")
	require.NoError(t, err)

	assert.Equal(t, uint32(0), before.ExpiringHTLCs)
	assert.Equal(t, uint32(30), store.Snapshot().ExpiringHTLCs)
	assert.Equal(t, "30", overrides.saved["vitality-expiring-htlcs"])
	assert.Equal(t, uint64(1), store.Version())
}

func TestStore_SetInvalidLeavesSettings(t *testing.T) {
	store := NewStore(DefaultSettings(), nil)

	_, err := store.Set(context.Background(), "vitality-watch-channels", "maybe")
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.True(t, store.Snapshot().WatchChannels)

	overrides := &memOverrides{err: errors.New("disk full")}
	store = NewStore(DefaultSettings(), overrides)
	_, err = store.Set(context.Background(), "vitality-amboss", true)
	assert.Error(t, err)
	assert.False(t, store.Snapshot().Amboss)
}

func TestStore_ReplaceReappliesOverrides(t *testing.T) {
	overrides := &memOverrides{saved: map[string]string{
		"vitality-watch-gossip":       "true",
		"vitality-telegram-usernames": "alice,bob",
		"vitality-smtp-port":          "not-a-port",
	}}
	store := NewStore(DefaultSettings(), overrides)

	base := DefaultSettings()
	base.SMTPPort = 25
	require.NoError(t, store.Replace(context.Background(), base))

	got := store.Snapshot()
	assert.True(t, got.WatchGossip)
	assert.Equal(t, []string{"alice", "bob"}, got.TelegramUsernames)
	assert.Equal(t, uint16(25), got.SMTPPort)
}

func TestStore_ConcurrentSetKeepsStorageAndSnapshotInStep(t *testing.T) {
	overrides := &memOverrides{}
	store := NewStore(DefaultSettings(), overrides)

	var wg sync.WaitGroup
	for i := 1; i <= 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.Set(context.Background(), "vitality-expiring-htlcs", strconv.Itoa(n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	saved, err := overrides.LoadOptions(context.Background())
	require.NoError(t, err)
	live := store.Snapshot().ExpiringHTLCs
	assert.Equal(t, strconv.FormatUint(uint64(live), 10), saved["vitality-expiring-htlcs"])
	assert.Equal(t, uint64(64), store.Version())
}

func TestStore_UnsetRestoresFileValue(t *testing.T) {
	ctx := context.Background()
	overrides := &memOverrides{}
	base := DefaultSettings()
	base.ExpiringHTLCs = 10
	store := NewStore(base, overrides)

	_, err := store.Set(ctx, "vitality-expiring-htlcs", "144")
	require.NoError(t, err)
	_, err = store.Set(ctx, "vitality-watch-gossip", true)
	require.NoError(t, err)

	got, err := store.Unset(ctx, "vitality-expiring-htlcs")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), got.ExpiringHTLCs)
	assert.True(t, got.WatchGossip, "other overrides stay applied")
	assert.Equal(t, got, store.Snapshot())

	saved, _ := overrides.LoadOptions(ctx)
	assert.Equal(t, map[string]string{"vitality-watch-gossip": "true"}, saved)

	_, err = store.Unset(ctx, "vitality-expiring-htlcs")
	assert.ErrorIs(t, err, storage.ErrOptionNotFound)

	_, err = store.Unset(ctx, "vitality-nope")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestStore_UnsetWithoutPersistence(t *testing.T) {
	store := NewStore(DefaultSettings(), nil)
	_, err := store.Unset(context.Background(), "vitality-amboss")
	assert.ErrorIs(t, err, storage.ErrOptionNotFound)
}
