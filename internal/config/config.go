// Package config loads lndcli configuration: named node profiles plus
// logging, metrics and cursor store settings.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level lndcli configuration.
type Config struct {
	// Node names the profile used when none is selected explicitly.
	Node    string                `yaml:"node"`
	Nodes   map[string]NodeConfig `yaml:"nodes"`
	Logging LoggingConfig         `yaml:"logging"`
	Metrics MetricsConfig         `yaml:"metrics"`
	Cursors CursorsConfig         `yaml:"cursors"`
}

// NodeConfig describes how to reach one daemon.
type NodeConfig struct {
	// Address is https://host[:port] or http://host[:port].
	Address  string `yaml:"address"`
	TLSCert  string `yaml:"tls_cert"`
	Macaroon string `yaml:"macaroon"`
	// TLSMinVersion is "1.2" or "1.3".
	TLSMinVersion  string `yaml:"tls_min_version"`
	EagerConnect   bool   `yaml:"eager_connect"`
	Timeout        string `yaml:"timeout"`
	MaxRecvMsgSize int    `yaml:"max_recv_msg_size"`
}

type LoggingConfig struct {
	Level          string   `yaml:"level"`
	Format         string   `yaml:"format"`
	RedactPatterns []string `yaml:"redact_patterns"`
	// Audit logs every RPC outcome.
	Audit bool `yaml:"audit"`
}

type MetricsConfig struct {
	// Listen enables a /metrics endpoint when set.
	Listen string `yaml:"listen"`
}

type CursorsConfig struct {
	// Path of the bbolt database holding invoice subscription cursors.
	Path string `yaml:"path"`
}

// DefaultNode is the profile name used when the config names none.
const DefaultNode = "default"

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// ParseDuration is a helper that parses a duration string with a fallback.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// TLSVersion maps "1.2"/"1.3" to the crypto/tls constant; empty means 0
// (library default).
func TLSVersion(s string) (uint16, error) {
	switch s {
	case "":
		return 0, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported tls version %q", s)
	}
}

// Profile returns the named node, or the default node when name is empty.
func (c *Config) Profile(name string) (NodeConfig, error) {
	if name == "" {
		name = c.Node
	}
	n, ok := c.Nodes[name]
	if !ok {
		return NodeConfig{}, fmt.Errorf("unknown node %q (configured: %s)", name, strings.Join(c.nodeNames(), ", "))
	}
	return n, nil
}

// Validate checks values that would otherwise fail later with a less
// helpful error.
func (c *Config) Validate() error {
	var errs []error
	for _, name := range c.nodeNames() {
		n := c.Nodes[name]
		if strings.TrimSpace(n.Address) == "" {
			errs = append(errs, fmt.Errorf("nodes.%s.address is required", name))
		}
		if _, err := TLSVersion(n.TLSMinVersion); err != nil {
			errs = append(errs, fmt.Errorf("nodes.%s.tls_min_version: %w", name, err))
		}
		if n.Timeout != "" {
			if _, err := time.ParseDuration(n.Timeout); err != nil {
				errs = append(errs, fmt.Errorf("nodes.%s.timeout: %w", name, err))
			}
		}
		if n.MaxRecvMsgSize < 0 {
			errs = append(errs, fmt.Errorf("nodes.%s.max_recv_msg_size must not be negative", name))
		}
	}
	if _, ok := c.Nodes[c.Node]; !ok && len(c.Nodes) > 0 {
		errs = append(errs, fmt.Errorf("node %q is not configured", c.Node))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level))
	}
	return errors.Join(errs...)
}

func (c *Config) nodeNames() []string {
	names := make([]string, 0, len(c.Nodes))
	for name := range c.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func applyDefaults(cfg *Config) {
	if cfg.Node == "" {
		cfg.Node = DefaultNode
	}
	if cfg.Nodes == nil {
		cfg.Nodes = map[string]NodeConfig{}
	}
	for name, n := range cfg.Nodes {
		if n.Timeout == "" {
			n.Timeout = "30s"
		}
		cfg.Nodes[name] = n
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.RedactPatterns == nil {
		cfg.Logging.RedactPatterns = []string{`[0-9a-fA-F]{64,}`}
	}
}
