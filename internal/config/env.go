package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the selected node profile.
const (
	EnvNode     = "LND_NODE"
	EnvAddress  = "LND_ADDRESS"
	EnvTLSCert  = "LND_TLS_CERT"
	EnvMacaroon = "LND_MACAROON"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file into the process
// environment. A missing file is not an error and existing variables are
// not overwritten.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load dotenv %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays LND_* variables onto the selected profile, creating it
// when the config has none, and re-validates.
func ApplyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvNode)); v != "" {
		cfg.Node = v
	}
	n := cfg.Nodes[cfg.Node]
	if v := strings.TrimSpace(os.Getenv(EnvAddress)); v != "" {
		n.Address = v
	}
	if v, ok := os.LookupEnv(EnvTLSCert); ok {
		// An explicitly empty LND_TLS_CERT selects plaintext.
		n.TLSCert = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMacaroon)); v != "" {
		n.Macaroon = v
	}
	if n != (NodeConfig{}) {
		if n.Timeout == "" {
			n.Timeout = "30s"
		}
		cfg.Nodes[cfg.Node] = n
	}
	return cfg.Validate()
}
