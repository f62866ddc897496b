package transport

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/markcallen/lnd-grpc/internal/pinning"
)

// ErrTLSConfig is wrapped by every TLS setup failure.
var ErrTLSConfig = errors.New("tls config")

// TLSOptions tunes the client TLS configuration.
type TLSOptions struct {
	// MinVersion defaults to TLS 1.2, the lowest version lnd serves.
	MinVersion uint16
}

// ClientTLSConfig returns a TLS config that trusts exactly the pinned set.
// Hostname and CA validation are off; the returned verifier decides.
func ClientTLSConfig(set pinning.Set, opts TLSOptions) (*tls.Config, *pinning.Verifier, error) {
	if set.Empty() {
		return nil, nil, fmt.Errorf("%w: no pinned certificates", ErrTLSConfig)
	}

	minVersion := opts.MinVersion
	switch minVersion {
	case 0:
		minVersion = tls.VersionTLS12
	case tls.VersionTLS12, tls.VersionTLS13:
	default:
		return nil, nil, fmt.Errorf("%w: unsupported minimum version %#04x", ErrTLSConfig, minVersion)
	}

	verifier := pinning.NewVerifier(set)
	return &tls.Config{
		MinVersion:            minVersion,
		InsecureSkipVerify:    true, //nolint:gosec // the pinning verifier replaces chain validation
		VerifyPeerCertificate: verifier.VerifyPeerCertificate,
		NextProtos:            []string{"h2"},
	}, verifier, nil
}
