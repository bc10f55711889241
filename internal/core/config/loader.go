package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Defaults returns a configuration with every default applied.
func Defaults() AppConfig {
	return AppConfig{
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info"},
		Node: NodeConfig{
			Transport:  TransportSocket,
			SocketPath: os.ExpandEnv("${HOME}/.lightning/bitcoin/lightning-rpc"),
			Timeout:    60 * time.Second,
			MinVersion: "23.02",
		},
		Vitality: DefaultSettings(),
		Schedule: ScheduleConfig{
			ChannelInterval:  time.Hour,
			InitialDelay:     10 * time.Minute,
			DisconnectSettle: 10 * time.Second,
			ReconnectSettle:  30 * time.Second,
			ProbeInterval:    5 * time.Minute,
			ProbeRetry:       10 * time.Second,
			ProbeStep:        10 * time.Second,
			ProbeMax:         5 * time.Minute,
		},
		Amboss: AmbossConfig{
			URL:     "https://api.amboss.space/graphql",
			Timeout: 30 * time.Second,
		},
		NATS:      NATSConfig{Subject: "vitality.alerts"},
		Telemetry: TelemetryConfig{ServiceName: "vitality"},
	}
}

// Load reads configuration from a YAML file. An empty path yields the
// defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if debug := os.Getenv("VITALITY_TEST_DEBUG"); strings.EqualFold(debug, "true") {
		cfg.Schedule.InitialDelay = 0
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Node.Timeout == 0 {
		cfg.Node.Timeout = 60 * time.Second
	}
	if cfg.Schedule.ChannelInterval <= 0 {
		cfg.Schedule.ChannelInterval = time.Hour
	}
	if cfg.Schedule.ProbeInterval <= 0 {
		cfg.Schedule.ProbeInterval = 5 * time.Minute
	}
	if cfg.Schedule.ProbeMax <= 0 {
		cfg.Schedule.ProbeMax = cfg.Schedule.ProbeInterval
	}
	cfg.Vitality.TelegramUsernames = normalizeUsernames(cfg.Vitality.TelegramUsernames)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *AppConfig) Validate() error {
	switch c.Node.Transport {
	case TransportSocket:
		if c.Node.SocketPath == "" {
			return fmt.Errorf("node.socket_path is required for the socket transport")
		}
	case TransportREST:
		if c.Node.RestURL == "" || c.Node.Rune == "" {
			return fmt.Errorf("node.rest_url and node.rune are required for the rest transport")
		}
	default:
		return fmt.Errorf("unknown node transport %q", c.Node.Transport)
	}
	if c.Schedule.ProbeRetry <= 0 || c.Schedule.ProbeStep < 0 {
		return fmt.Errorf("schedule.probe_retry must be positive and probe_step non-negative")
	}
	return nil
}

func normalizeUsernames(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, u := range in {
		for _, part := range strings.Split(u, ",") {
			if part = strings.TrimSpace(part); part != "" && !seen[part] {
				seen[part] = true
				out = append(out, part)
			}
		}
	}
	return out
}
