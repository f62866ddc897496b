package transport

import (
	"crypto/tls"
	"errors"
	"os"
	"testing"

	"github.com/markcallen/lnd-grpc/internal/pinning"
	"github.com/markcallen/lnd-grpc/internal/pki"
)

func pinnedSet(t *testing.T) pinning.Set {
	t.Helper()
	certPath, _, err := pki.GenerateSelfSigned(t.TempDir(), pki.SelfSignedConfig{})
	if err != nil {
		t.Fatalf("GenerateSelfSigned: %v", err)
	}
	data, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	set, err := pinning.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return set
}

func TestClientTLSConfig(t *testing.T) {
	cfg, verifier, err := ClientTLSConfig(pinnedSet(t), TLSOptions{})
	if err != nil {
		t.Fatalf("ClientTLSConfig: %v", err)
	}
	if verifier == nil {
		t.Fatal("verifier is nil")
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %#x, want TLS 1.2", cfg.MinVersion)
	}
	if !cfg.InsecureSkipVerify || cfg.VerifyPeerCertificate == nil {
		t.Error("expected pinning verifier in place of chain validation")
	}
	if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != "h2" {
		t.Errorf("NextProtos = %v, want [h2]", cfg.NextProtos)
	}
}

func TestClientTLSConfigMinVersion(t *testing.T) {
	cfg, _, err := ClientTLSConfig(pinnedSet(t), TLSOptions{MinVersion: tls.VersionTLS13})
	if err != nil {
		t.Fatalf("ClientTLSConfig: %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %#x, want TLS 1.3", cfg.MinVersion)
	}

	if _, _, err := ClientTLSConfig(pinnedSet(t), TLSOptions{MinVersion: tls.VersionTLS10}); !errors.Is(err, ErrTLSConfig) {
		t.Errorf("TLS 1.0 err = %v, want ErrTLSConfig", err)
	}
}

func TestClientTLSConfigEmptySet(t *testing.T) {
	if _, _, err := ClientTLSConfig(pinning.Set{}, TLSOptions{}); !errors.Is(err, ErrTLSConfig) {
		t.Fatalf("err = %v, want ErrTLSConfig", err)
	}
}
