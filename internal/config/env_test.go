package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"# comment",
		"DOTENV_TEST_FOO=bar",
		`DOTENV_TEST_BAR="baz qux"`,
		"export DOTENV_TEST_ZED=1",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("DOTENV_TEST_KEEP", "existing")
	for _, k := range []string{"DOTENV_TEST_FOO", "DOTENV_TEST_BAR", "DOTENV_TEST_ZED"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if got := os.Getenv("DOTENV_TEST_FOO"); got != "bar" {
		t.Fatalf("DOTENV_TEST_FOO=%q, want %q", got, "bar")
	}
	if got := os.Getenv("DOTENV_TEST_BAR"); got != "baz qux" {
		t.Fatalf("DOTENV_TEST_BAR=%q, want %q", got, "baz qux")
	}
	if got := os.Getenv("DOTENV_TEST_ZED"); got != "1" {
		t.Fatalf("DOTENV_TEST_ZED=%q, want %q", got, "1")
	}
	if got := os.Getenv("DOTENV_TEST_KEEP"); got != "existing" {
		t.Fatalf("DOTENV_TEST_KEEP=%q, want %q", got, "existing")
	}
}

func TestLoadDotEnvDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOTENV_TEST_FOO=from-file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("DOTENV_TEST_FOO", "from-env")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("DOTENV_TEST_FOO"); got != "from-env" {
		t.Fatalf("DOTENV_TEST_FOO=%q, want %q", got, "from-env")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	t.Setenv(EnvAddress, "https://10.0.0.1:10009")
	t.Setenv(EnvTLSCert, "/tmp/tls.cert")
	t.Setenv(EnvMacaroon, "/tmp/admin.macaroon")

	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	n, err := cfg.Profile("")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if n.Address != "https://10.0.0.1:10009" || n.TLSCert != "/tmp/tls.cert" || n.Macaroon != "/tmp/admin.macaroon" {
		t.Fatalf("profile = %+v", n)
	}
}

func TestApplyEnvOverridesProfile(t *testing.T) {
	cfg := &Config{
		Node: "alice",
		Nodes: map[string]NodeConfig{
			"alice": {Address: "https://127.0.0.1:10009", TLSCert: "/a/tls.cert"},
			"bob":   {Address: "https://127.0.0.1:10010", TLSCert: "/b/tls.cert"},
		},
	}
	applyDefaults(cfg)
	t.Setenv(EnvNode, "bob")
	t.Setenv(EnvAddress, "http://127.0.0.1:10010")
	t.Setenv(EnvTLSCert, "")

	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	n, err := cfg.Profile("")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if n.Address != "http://127.0.0.1:10010" || n.TLSCert != "" {
		t.Fatalf("bob = %+v", n)
	}
	if cfg.Nodes["alice"].TLSCert != "/a/tls.cert" {
		t.Fatal("alice profile changed")
	}
}
