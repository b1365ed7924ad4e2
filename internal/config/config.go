// Package config loads the appeal bot configuration: the shared core
// sections plus database, relay and workflow settings.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/appealbot/core/config"
	coredatabase "github.com/m3rciful/appealbot/core/database"
)

const (
	defaultRelayListen     = "0.0.0.0"
	defaultRelayPort       = 8443
	defaultBridgeTimeoutMS = 5000
	defaultBridgeQueue     = 32
	defaultAlbumLatencyMS  = 500
	defaultSendRate        = 25
)

// RelayConfig configures the attachment relay server.
type RelayConfig struct {
	Listen string `yaml:"listen" envconfig:"RELAY_LISTEN"`
	Port   int    `yaml:"port" envconfig:"RELAY_PORT"`
	// PublicURL is the externally reachable base of the relay, used in appeal links.
	PublicURL       string `yaml:"public_url" envconfig:"RELAY_PUBLIC_URL"`
	TLSCert         string `yaml:"tls_cert" envconfig:"RELAY_TLS_CERT"`
	TLSKey          string `yaml:"tls_key" envconfig:"RELAY_TLS_KEY"`
	BridgeTimeoutMS int    `yaml:"bridge_timeout_ms" envconfig:"RELAY_BRIDGE_TIMEOUT_MS"`
	BridgeQueue     int    `yaml:"bridge_queue" envconfig:"RELAY_BRIDGE_QUEUE"`
}

// BridgeTimeout returns the lookup timeout as a duration.
func (r RelayConfig) BridgeTimeout() time.Duration {
	return time.Duration(r.BridgeTimeoutMS) * time.Millisecond
}

// WorkflowConfig tunes the conversation engine.
type WorkflowConfig struct {
	AlbumLatencyMS int `yaml:"album_latency_ms" envconfig:"WORKFLOW_ALBUM_LATENCY_MS"`
	// SendRate caps outbound sends and edits per second.
	SendRate int `yaml:"send_rate" envconfig:"WORKFLOW_SEND_RATE"`
}

// AlbumLatency returns the album quiet period as a duration.
func (w WorkflowConfig) AlbumLatency() time.Duration {
	return time.Duration(w.AlbumLatencyMS) * time.Millisecond
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Relay    RelayConfig         `yaml:"relay"`
	Workflow WorkflowConfig      `yaml:"workflow"`
}

// CoreConfig exposes the shared sections to the core runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and normalizes every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}
	if err := normalizeRelay(&cfg.Relay); err != nil {
		return err
	}
	return normalizeWorkflow(&cfg.Workflow)
}

func normalizeRelay(r *RelayConfig) error {
	r.Listen = strings.TrimSpace(r.Listen)
	if r.Listen == "" {
		r.Listen = defaultRelayListen
	}
	if r.Port == 0 {
		r.Port = defaultRelayPort
	}
	if r.Port < 0 || r.Port > 65535 {
		return fmt.Errorf("relay.port must be within 1..65535")
	}
	if (r.TLSCert == "") != (r.TLSKey == "") {
		return fmt.Errorf("relay.tls_cert and relay.tls_key must be set together")
	}

	r.PublicURL = strings.TrimRight(strings.TrimSpace(r.PublicURL), "/")
	if r.PublicURL == "" {
		return fmt.Errorf("relay.public_url is required")
	}
	u, err := url.Parse(r.PublicURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("relay.public_url must be an absolute http(s) URL, got %q", r.PublicURL)
	}

	if r.BridgeTimeoutMS == 0 {
		r.BridgeTimeoutMS = defaultBridgeTimeoutMS
	}
	if r.BridgeTimeoutMS < 0 {
		return fmt.Errorf("relay.bridge_timeout_ms must be > 0")
	}
	if r.BridgeQueue == 0 {
		r.BridgeQueue = defaultBridgeQueue
	}
	if r.BridgeQueue < 0 {
		return fmt.Errorf("relay.bridge_queue must be > 0")
	}
	return nil
}

func normalizeWorkflow(w *WorkflowConfig) error {
	if w.AlbumLatencyMS == 0 {
		w.AlbumLatencyMS = defaultAlbumLatencyMS
	}
	if w.AlbumLatencyMS < 0 {
		return fmt.Errorf("workflow.album_latency_ms must be > 0")
	}
	if w.SendRate == 0 {
		w.SendRate = defaultSendRate
	}
	if w.SendRate < 0 {
		return fmt.Errorf("workflow.send_rate must be > 0")
	}
	return nil
}
