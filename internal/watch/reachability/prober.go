// Package reachability proves to an external health-check endpoint that
// the node is online by signing a timestamp with the node key.
package reachability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/vietddude/vitality/internal/infra/telemetry"
)

// TimestampLayout is the format of the signed challenge.
const TimestampLayout = "2006-01-02T15:04:05-0700"

const healthCheckMutation = "mutation HealthCheck($signature: String!, $timestamp: String!) " +
	"{ healthCheck(signature: $signature, timestamp: $timestamp) }"

// ErrProbeFailed matches every rejected or malformed probe response.
var ErrProbeFailed = errors.New("probe failed")

// ProbeError carries the raw response of a failed probe.
type ProbeError struct {
	Body string
}

func (e *ProbeError) Error() string {
	return "Amboss ping error: " + e.Body
}

func (e *ProbeError) Is(target error) bool {
	return target == ErrProbeFailed
}

// Signer signs a message with the node key.
type Signer interface {
	SignMessage(ctx context.Context, text string) (string, error)
}

type graphQLRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type healthCheckResponse struct {
	Data *struct {
		HealthCheck *bool `json:"healthCheck"`
	} `json:"data"`
}

// Prober submits one signed health check.
type Prober struct {
	signer   Signer
	endpoint string
	client   *http.Client
	now      func() time.Time
	log      *slog.Logger
}

// NewProber creates a prober posting to endpoint.
func NewProber(signer Signer, endpoint string, timeout time.Duration) *Prober {
	return &Prober{
		signer:   signer,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
		log:      slog.Default().With("component", "reachability"),
	}
}

// Probe signs the current time and submits it. Only a response whose
// data.healthCheck is true counts as success.
func (p *Prober) Probe(ctx context.Context) error {
	ctx, span := telemetry.Tracer().Start(ctx, "reachability.probe")
	defer span.End()

	err := p.probe(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Prober) probe(ctx context.Context) error {
	start := time.Now()
	timestamp := p.now().UTC().Format(TimestampLayout)
	p.log.Debug("Creating health check ping", "timestamp", timestamp)

	signature, err := p.signer.SignMessage(ctx, timestamp)
	if err != nil {
		return fmt.Errorf("sign timestamp: %w", err)
	}

	payload, err := json.Marshal(graphQLRequest{
		Query: healthCheckMutation,
		Variables: map[string]string{
			"signature": signature,
			"timestamp": timestamp,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ping: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var parsed healthCheckResponse
	if err := json.Unmarshal(body, &parsed); err != nil ||
		parsed.Data == nil || parsed.Data.HealthCheck == nil || !*parsed.Data.HealthCheck {
		return &ProbeError{Body: string(body)}
	}

	p.log.Info("Health check ping succeeded", "duration", time.Since(start))
	return nil
}
