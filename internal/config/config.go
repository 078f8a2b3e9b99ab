package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the discovery service configuration. Timing fields that
// the source protocol fixes (reconnect delay, node timeout) are still
// plain fields so tests can shrink them, but callers are expected to
// leave them at their defaults.
type Config struct {
	NodeType string `yaml:"node_type"`
	NodeName string `yaml:"node_name"`
	Room     string `yaml:"room"`

	// BackendURL is the relay base URL (http or https); the transport
	// derives the ws endpoint from it.
	BackendURL string `yaml:"backend_url"`

	// Port advertised to peers for direct (non-discovery) traffic.
	ServicePort int `yaml:"service_port"`

	// DataDir is where identity, the node cache and manual overrides
	// are persisted.
	DataDir string `yaml:"data_dir"`

	DiscoveryInterval time.Duration `yaml:"discovery_interval"` // staleness sweep cadence
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // self-announce cadence
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`    // fixed, no backoff
	NodeTimeout       time.Duration `yaml:"node_timeout"`       // online -> offline threshold
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		NodeType:    "bedside",
		NodeName:    "wardlink-node",
		BackendURL:  "http://localhost:8000",
		ServicePort: 8001,
		DataDir:     "data",

		DiscoveryInterval: 5 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		ReconnectDelay:    5 * time.Second,
		NodeTimeout:       15 * time.Second,
	}
}

// Load reads a YAML config file over the defaults. A missing file is
// not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields the service cannot run without.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url must be set")
	}
	if c.DiscoveryInterval <= 0 {
		return fmt.Errorf("discovery_interval must be positive, got %v", c.DiscoveryInterval)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %v", c.HeartbeatInterval)
	}
	return nil
}
