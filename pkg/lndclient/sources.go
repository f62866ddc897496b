package lndclient

import (
	"bytes"
	"context"
	"os"

	"github.com/markcallen/lnd-grpc/internal/macaroon"
)

// CertSource supplies the PEM certificate(s) to pin. A nil CertSource means
// the daemon is reached over cleartext.
type CertSource interface {
	ReadPEM(ctx context.Context) ([]byte, error)
	// Path names the source in errors; empty for in-memory sources.
	Path() string
}

// MacaroonSource supplies the raw macaroon.
type MacaroonSource interface {
	Load(ctx context.Context) (macaroon.Credential, error)
	Path() string
}

// CertFile pins the certificate(s) in a PEM file, usually lnd's tls.cert.
func CertFile(path string) CertSource { return certFile(path) }

// CertPEM pins certificates already in memory.
func CertPEM(data []byte) CertSource { return certPEM(bytes.Clone(data)) }

// MacaroonFile reads a macaroon file such as admin.macaroon.
func MacaroonFile(path string) MacaroonSource { return macaroonFile(path) }

// MacaroonBytes uses raw macaroon bytes already in memory.
func MacaroonBytes(raw []byte) MacaroonSource { return macaroonBytes(bytes.Clone(raw)) }

type certFile string

func (f certFile) ReadPEM(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(string(f))
}

func (f certFile) Path() string { return string(f) }

type certPEM []byte

func (p certPEM) ReadPEM(context.Context) ([]byte, error) { return p, nil }
func (p certPEM) Path() string                            { return "" }

type macaroonFile string

func (f macaroonFile) Load(ctx context.Context) (macaroon.Credential, error) {
	return macaroon.Load(ctx, string(f))
}

func (f macaroonFile) Path() string { return string(f) }

type macaroonBytes []byte

func (b macaroonBytes) Load(context.Context) (macaroon.Credential, error) {
	return macaroon.New(b), nil
}

func (b macaroonBytes) Path() string { return "" }
