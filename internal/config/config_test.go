package config

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lndcli.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
node: alice
nodes:
  alice:
    address: "https://127.0.0.1:10009"
    tls_cert: "/data/alice/tls.cert"
    macaroon: "/data/alice/admin.macaroon"
  bob:
    address: "http://127.0.0.1:10010"
    tls_min_version: "1.3"
    timeout: "5s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("logging defaults = %+v", cfg.Logging)
	}
	if len(cfg.Logging.RedactPatterns) == 0 {
		t.Fatal("expected default redact pattern")
	}

	alice, err := cfg.Profile("")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if alice.Address != "https://127.0.0.1:10009" || alice.Timeout != "30s" {
		t.Fatalf("alice = %+v", alice)
	}

	bob, err := cfg.Profile("bob")
	if err != nil {
		t.Fatalf("Profile bob: %v", err)
	}
	v, err := TLSVersion(bob.TLSMinVersion)
	if err != nil || v != tls.VersionTLS13 {
		t.Fatalf("TLSVersion = %#x, %v", v, err)
	}

	if _, err := cfg.Profile("carol"); err == nil || !strings.Contains(err.Error(), "alice, bob") {
		t.Fatalf("unknown profile err = %v", err)
	}
}

func TestLoadValidateErrors(t *testing.T) {
	path := writeConfig(t, `
nodes:
  default:
    tls_min_version: "1.1"
    timeout: "soon"
logging:
  format: "xml"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"nodes.default.address", "tls_min_version", "nodes.default.timeout", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestLoadUnknownDefaultNode(t *testing.T) {
	path := writeConfig(t, `
node: missing
nodes:
  alice:
    address: "https://127.0.0.1:10009"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), `"missing"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("", 3); got != 3 {
		t.Errorf("empty = %v", got)
	}
	if got := ParseDuration("bad", 3); got != 3 {
		t.Errorf("bad = %v", got)
	}
	if got := ParseDuration("2s", 3); got.Seconds() != 2 {
		t.Errorf("2s = %v", got)
	}
}
