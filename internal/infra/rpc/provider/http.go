package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider implements Provider for clnrest. Every method is a
// POST to {endpoint}/v1/{method} with the params object as body.
type HTTPProvider struct {
	*BaseProvider
	endpoint   string
	rune       string
	httpClient *http.Client
}

// NewHTTPProvider creates a new clnrest provider. insecure skips TLS
// verification for the node's self-signed certificate.
func NewHTTPProvider(endpoint, runeToken string, timeout time.Duration, insecure bool) *HTTPProvider {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &HTTPProvider{
		BaseProvider: NewBaseProvider("rest"),
		endpoint:     strings.TrimRight(endpoint, "/"),
		rune:         runeToken,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Call makes a single clnrest call.
func (p *HTTPProvider) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	result, err := p.call(ctx, method, params)
	p.Record(time.Since(start), err)
	return result, err
}

func (p *HTTPProvider) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	url := p.endpoint + "/v1/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Rune", p.rune)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Rune rejected
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("rune rejected (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var rpcErr RPCError
		if err := json.Unmarshal(data, &rpcErr); err == nil && rpcErr.Message != "" {
			return nil, &rpcErr
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	if !json.Valid(data) {
		return nil, &DecodeError{Op: "parse response", Err: fmt.Errorf("invalid json: %.200s", data)}
	}
	return json.RawMessage(data), nil
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
