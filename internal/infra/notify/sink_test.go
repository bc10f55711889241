package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/vietddude/vitality/internal/core/config"
	redisclient "github.com/vietddude/vitality/internal/infra/redis"
)

type recordingSink struct {
	name   string
	err    error
	alerts []Alert
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, alert Alert) error {
	s.alerts = append(s.alerts, alert)
	return s.err
}

func mailSettings() config.Settings {
	return config.Settings{
		SMTPUsername: "u",
		SMTPPassword: "p",
		SMTPServer:   "smtp.example.com",
		SMTPPort:     587,
		EmailFrom:    "vitality@example.com",
		EmailTo:      "ops@example.com",
	}
}

func TestDispatcher_SinkSelection(t *testing.T) {
	d := NewDispatcher(NewTelegramClient("", time.Second))

	assert.Empty(t, d.Sinks(config.DefaultSettings()))

	s := mailSettings()
	s.TelegramToken = "t"
	s.TelegramUsernames = []string{"@alice"}
	sinks := d.Sinks(s)

	require.Len(t, sinks, 2)
	assert.Equal(t, "mail", sinks[0].Name())
	assert.Equal(t, "telegram", sinks[1].Name())
}

func TestDispatcher_FailingSinkDoesNotStopOthers(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("boom")}
	good := &recordingSink{name: "good"}
	d := NewDispatcher(nil, bad, good)
	d.SetNode("02me")

	err := d.Dispatch(context.Background(), config.DefaultSettings(), "Channel check report", "body")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	require.Len(t, good.alerts, 1)
	alert := good.alerts[0]
	assert.Equal(t, "Channel check report", alert.Subject)
	assert.Equal(t, "body", alert.Body)
	assert.Equal(t, "02me", alert.Node)
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, alert.ID, bad.alerts[0].ID)
}

func TestDispatcher_NoSinks(t *testing.T) {
	d := NewDispatcher(NewTelegramClient("", time.Second))

	err := d.Dispatch(context.Background(), config.DefaultSettings(), "Channel check report", "body")
	assert.ErrorIs(t, err, ErrNoSinks)

	// Telegram without recipients is not a sink.
	s := config.Settings{TelegramToken: "t"}
	assert.ErrorIs(t, d.Dispatch(context.Background(), s, "Amboss error", "x"), ErrNoSinks)
}

func TestDispatcher_UsesMailFactory(t *testing.T) {
	fake := &recordingSink{name: "mail"}
	d := NewDispatcher(nil)
	d.mailSink = func(config.Settings) Sink { return fake }

	require.NoError(t, d.Dispatch(context.Background(), mailSettings(), "Test Notification", "hello"))
	assert.Len(t, fake.alerts, 1)
}

func TestDispatcher_TelegramEndToEnd(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	d := NewDispatcher(NewTelegramClient(server.URL, time.Second))
	s := config.Settings{TelegramToken: "TOKEN", TelegramUsernames: []string{"@alice"}}

	require.NoError(t, d.Dispatch(context.Background(), s, "Amboss error", "Amboss ping error: {}"))
	assert.Equal(t, "@alice", got["chat_id"])
	assert.Equal(t, "Amboss error\nAmboss ping error: {}", got["text"])
}

func TestMailSink_BuildMessage(t *testing.T) {
	sink := NewMailSink(mailSettings())

	msg, err := sink.buildMessage(Alert{Subject: "Channel check report", Body: "02aa:\nbad\n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Channel check report"}, msg.GetGenHeader(mail.HeaderSubject))

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, rcpts)

	bad := mailSettings()
	bad.EmailTo = "not an address"
	_, err = NewMailSink(bad).buildMessage(Alert{})
	assert.Error(t, err)
}

func TestRedisSink_PublishesJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient(redisclient.Config{URL: "redis://" + mr.Addr(), Channel: "alerts"})
	require.NoError(t, err)
	sink := NewRedisSink(client)
	defer sink.Close()

	sub := goredis.NewClient(&goredis.Options{Addr: mr.Addr()}).Subscribe(context.Background(), "alerts")
	defer sub.Close()
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), Alert{ID: "1", Subject: "s", Body: "b", Node: "02me"}))

	select {
	case msg := <-sub.Channel():
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
		assert.Equal(t, "s", decoded["subject"])
		assert.Equal(t, "02me", decoded["node"])
	case <-time.After(2 * time.Second):
		t.Fatal("alert not published")
	}
}

type stubPublisher struct {
	subject string
	data    []byte
	flushed bool
	err     error
}

func (p *stubPublisher) Publish(subject string, data []byte) error {
	p.subject, p.data = subject, data
	return p.err
}

func (p *stubPublisher) FlushWithContext(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	p.flushed = true
	return nil
}

func (p *stubPublisher) Close() {}

func TestNATSSink_Send(t *testing.T) {
	pub := &stubPublisher{}
	sink := &NATSSink{conn: pub, subject: "vitality.alerts"}

	require.NoError(t, sink.Send(context.Background(), Alert{Subject: "s"}))
	assert.Equal(t, "vitality.alerts", pub.subject)
	assert.True(t, pub.flushed)
	assert.Contains(t, string(pub.data), `"subject":"s"`)

	pub.err = errors.New("closed")
	assert.Error(t, sink.Send(context.Background(), Alert{}))
}
