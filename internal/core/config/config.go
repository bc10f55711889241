package config

import (
	"time"

	redisclient "github.com/vietddude/vitality/internal/infra/redis"
	"github.com/vietddude/vitality/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Node      NodeConfig         `yaml:"node"`
	Vitality  Settings           `yaml:"vitality"`
	Schedule  ScheduleConfig     `yaml:"schedule"`
	Amboss    AmbossConfig       `yaml:"amboss"`
	Redis     redisclient.Config `yaml:"redis"`
	NATS      NATSConfig         `yaml:"nats"`
	Database  postgres.Config    `yaml:"database"`
	Telemetry TelemetryConfig    `yaml:"telemetry"`
}

// ServerConfig holds the status server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC health service
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Transport selects how the node is reached.
type Transport string

const (
	TransportSocket Transport = "socket"
	TransportREST   Transport = "rest"
)

// NodeConfig describes the Core Lightning node to monitor.
type NodeConfig struct {
	Transport  Transport     `yaml:"transport"`
	SocketPath string        `yaml:"socket_path"` // lightning-rpc unix socket
	RestURL    string        `yaml:"rest_url"`    // clnrest base url
	Rune       string        `yaml:"rune"`
	Insecure   bool          `yaml:"rest_insecure"` // skip TLS verification for clnrest
	Timeout    time.Duration `yaml:"timeout"`
	MinVersion string        `yaml:"min_version"`
}

// ScheduleConfig holds the loop intervals and settle delays.
type ScheduleConfig struct {
	ChannelInterval  time.Duration `yaml:"channel_interval"`
	InitialDelay     time.Duration `yaml:"initial_delay"`
	DisconnectSettle time.Duration `yaml:"disconnect_settle"`
	ReconnectSettle  time.Duration `yaml:"reconnect_settle"`
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	ProbeRetry       time.Duration `yaml:"probe_retry"`
	ProbeStep        time.Duration `yaml:"probe_step"`
	ProbeMax         time.Duration `yaml:"probe_max"`
}

// AmbossConfig holds the reachability endpoint settings.
type AmbossConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig enables the NATS alert sink when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// TelemetryConfig enables OTLP tracing when the endpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Settings are the runtime-adjustable feature options. A Settings value
// handed out by Store.Snapshot is private to the caller.
type Settings struct {
	Amboss            bool     `yaml:"amboss"             json:"amboss"`
	ExpiringHTLCs     uint32   `yaml:"expiring_htlcs"     json:"expiring_htlcs"`
	WatchChannels     bool     `yaml:"watch_channels"     json:"watch_channels"`
	WatchGossip       bool     `yaml:"watch_gossip"       json:"watch_gossip"`
	TelegramToken     string   `yaml:"telegram_token"     json:"telegram_token"`
	TelegramUsernames []string `yaml:"telegram_usernames" json:"telegram_usernames"`
	SMTPUsername      string   `yaml:"smtp_username"      json:"smtp_username"`
	SMTPPassword      string   `yaml:"smtp_password"      json:"smtp_password"`
	SMTPServer        string   `yaml:"smtp_server"        json:"smtp_server"`
	SMTPPort          uint16   `yaml:"smtp_port"          json:"smtp_port"`
	EmailFrom         string   `yaml:"email_from"         json:"email_from"`
	EmailTo           string   `yaml:"email_to"           json:"email_to"`
}

// DefaultSettings returns the options in effect when nothing is configured.
func DefaultSettings() Settings {
	return Settings{WatchChannels: true}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	if s.TelegramUsernames != nil {
		out.TelegramUsernames = append([]string(nil), s.TelegramUsernames...)
	}
	return out
}

// SendMail reports whether every field required for email alerts is set.
func (s Settings) SendMail() bool {
	return s.SMTPUsername != "" &&
		s.SMTPPassword != "" &&
		s.SMTPServer != "" &&
		s.SMTPPort > 0 &&
		s.EmailFrom != "" &&
		s.EmailTo != ""
}

// SendTelegram reports whether a bot token and at least one recipient are set.
func (s Settings) SendTelegram() bool {
	return s.TelegramToken != "" && len(s.TelegramUsernames) > 0
}

// ChannelsEnabled reports whether the channel health loop has anything to do.
func (s Settings) ChannelsEnabled() bool {
	return s.ExpiringHTLCs > 0 || s.WatchChannels
}

// Redacted returns a copy safe to expose over the status API.
func (s Settings) Redacted() Settings {
	out := s.Clone()
	if out.TelegramToken != "" {
		out.TelegramToken = redacted
	}
	if out.SMTPPassword != "" {
		out.SMTPPassword = redacted
	}
	return out
}

const redacted = "***"
