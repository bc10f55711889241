package reachability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/watch/backoff"
	"github.com/vietddude/vitality/internal/watch/health"
)

type stubSigner struct {
	signed []string
	err    error
}

func (s *stubSigner) SignMessage(_ context.Context, text string) (string, error) {
	s.signed = append(s.signed, text)
	return "d9xyzsig", s.err
}

func endpoint(t *testing.T, response string, seen *graphQLRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			assert.NoError(t, json.Unmarshal(body, seen))
		}
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProber(signer Signer, url string) *Prober {
	p := NewProber(signer, url, 5*time.Second)
	p.now = func() time.Time {
		return time.Date(2024, 3, 9, 14, 5, 7, 0, time.FixedZone("CET", 3600))
	}
	return p
}

func TestProbe_Success(t *testing.T) {
	var seen graphQLRequest
	srv := endpoint(t, `{"data":{"healthCheck":true}}`, &seen)
	signer := &stubSigner{}

	require.NoError(t, newProber(signer, srv.URL).Probe(context.Background()))

	assert.Equal(t, []string{"2024-03-09T13:05:07+0000"}, signer.signed)
	assert.Equal(t, healthCheckMutation, seen.Query)
	assert.Equal(t, map[string]string{
		"signature": "d9xyzsig",
		"timestamp": "2024-03-09T13:05:07+0000",
	}, seen.Variables)
}

func TestProbe_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"false", `{"data":{"healthCheck":false}}`},
		{"missing field", `{"data":{}}`},
		{"null data", `{"data":null,"errors":[{"message":"bad signature"}]}`},
		{"wrong type", `{"data":{"healthCheck":"yes"}}`},
		{"not json", `<html>502 Bad Gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := endpoint(t, tt.response, nil)
			err := newProber(&stubSigner{}, srv.URL).Probe(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProbeFailed)
			assert.Equal(t, "Amboss ping error: "+tt.response, err.Error())
		})
	}
}

func TestProbe_SignFailure(t *testing.T) {
	srv := endpoint(t, `{"data":{"healthCheck":true}}`, nil)
	err := newProber(&stubSigner{err: errors.New("signmessage: node not connected")}, srv.URL).
		Probe(context.Background())

	assert.ErrorContains(t, err, "sign timestamp")
	assert.False(t, errors.Is(err, ErrProbeFailed))
}

type stubNotifier struct {
	subjects []string
}

func (s *stubNotifier) Dispatch(_ context.Context, _ config.Settings, subject, _ string) error {
	s.subjects = append(s.subjects, subject)
	return nil
}

type staticSettings struct{}

func (staticSettings) Snapshot() config.Settings { return config.Settings{Amboss: true} }

type outcomeRecorder struct {
	outcomes []health.Outcome
}

func (r *outcomeRecorder) Record(_ string, o health.Outcome) {
	r.outcomes = append(r.outcomes, o)
}

func TestLoop_BackoffAndAlerting(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy {
			_, _ = io.WriteString(w, `{"data":{"healthCheck":true}}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"healthCheck":false}}`)
	}))
	defer srv.Close()

	notifier := &stubNotifier{}
	rec := &outcomeRecorder{}
	loop := NewLoop(
		newProber(&stubSigner{}, srv.URL),
		backoff.NewLinearBackoff(5*time.Minute, 10*time.Second, 10*time.Second, 5*time.Minute),
		staticSettings{},
		notifier,
		rec,
	)
	ctx := context.Background()

	next, err := loop.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, next)

	healthy = false
	next, err = loop.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrProbeFailed)
	assert.Equal(t, 10*time.Second, next)
	assert.Empty(t, notifier.subjects, "first failure is not alerted")

	next, _ = loop.RunOnce(ctx)
	assert.Equal(t, 20*time.Second, next)
	next, _ = loop.RunOnce(ctx)
	assert.Equal(t, 30*time.Second, next)
	assert.Equal(t, []string{"Amboss error", "Amboss error"}, notifier.subjects)

	healthy = true
	next, err = loop.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, next)

	require.Len(t, rec.outcomes, 5)
	assert.Equal(t, 10*time.Second, rec.outcomes[1].Next)
	assert.NoError(t, rec.outcomes[4].Err)
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	srv := endpoint(t, `{"data":{"healthCheck":true}}`, nil)

	var slept []time.Duration
	loop := NewLoop(newProber(&stubSigner{}, srv.URL), backoff.DefaultBackoff(), staticSettings{}, &stubNotifier{}, nil).
		WithSleeper(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			if len(slept) == 2 {
				return context.Canceled
			}
			return nil
		})

	assert.ErrorIs(t, loop.Run(context.Background()), context.Canceled)
	assert.Equal(t, []time.Duration{5 * time.Minute, 5 * time.Minute}, slept)
}
