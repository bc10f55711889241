package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const (
	telegramAPI      = "https://api.telegram.org"
	telegramMaxBytes = 4000
)

// TelegramClient talks to the Bot API. It keeps one rate limiter per chat
// so bursts of alerts do not trip Telegram's flood control.
type TelegramClient struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewTelegramClient creates a client against baseURL (empty for the public
// Bot API).
func NewTelegramClient(baseURL string, timeout time.Duration) *TelegramClient {
	if baseURL == "" {
		baseURL = telegramAPI
	}
	return &TelegramClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiters:   make(map[string]*rate.Limiter),
		rps:        rate.Limit(1),
		burst:      3,
	}
}

func (c *TelegramClient) limiter(chat string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[chat]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[chat] = l
	}
	return l
}

// Sink returns a sink delivering to usernames with token.
func (c *TelegramClient) Sink(token string, usernames []string) *TelegramSink {
	return &TelegramSink{
		client:    c,
		token:     token,
		usernames: append([]string(nil), usernames...),
		log:       slog.Default().With("component", "telegram"),
	}
}

// SendMessage posts text to one chat.
func (c *TelegramClient) SendMessage(ctx context.Context, token, chat, text string) error {
	if err := c.limiter(chat).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"chat_id": chat, "text": text})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error would leak the token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("telegram request failed: %w", urlErr.Err)
		}
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &result); err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 || !result.OK {
		if result.Description != "" {
			return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, result.Description)
		}
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// TelegramSink sends each alert to every recipient independently.
type TelegramSink struct {
	client    *TelegramClient
	token     string
	usernames []string
	log       *slog.Logger
}

func (s *TelegramSink) Name() string { return "telegram" }

// Send delivers to every recipient. A failed recipient is logged and the
// rest still receive the alert.
func (s *TelegramSink) Send(ctx context.Context, alert Alert) error {
	text := truncate(alert.Subject+"\n"+alert.Body, telegramMaxBytes)

	var errs []error
	for _, user := range s.usernames {
		if err := s.client.SendMessage(ctx, s.token, user, text); err != nil {
			s.log.Warn("Error sending telegram", "recipient", user, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", user, err))
		}
	}
	return errors.Join(errs...)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
