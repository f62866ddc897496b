// Package pinning holds the pinned certificate set of an lnd daemon and the
// handshake policy that accepts only that exact set.
package pinning

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when a PEM source cannot be decoded into certificates.
	ErrMalformed = errors.New("malformed certificate pem")
	// ErrNoCertificates is returned when a PEM source holds no certificate blocks.
	ErrNoCertificates = errors.New("no certificates in pem")
)

// Set is an ordered list of DER certificates taken from one PEM source.
// It is never mutated after Parse returns it.
type Set struct {
	certs [][]byte
}

// Parse decodes every CERTIFICATE block in data, in order.
func Parse(data []byte) (Set, error) {
	var certs [][]byte
	rest := data
	for {
		block, next := pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			return Set{}, fmt.Errorf("%w: unexpected block %q at index %d", ErrMalformed, block.Type, len(certs))
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return Set{}, fmt.Errorf("%w: certificate %d: %v", ErrMalformed, len(certs), err)
		}
		certs = append(certs, block.Bytes)
		rest = next
	}

	// pem.Decode skips leading junk, so anything left over is truncated
	// armor or garbage after the last block.
	if len(bytes.TrimSpace(rest)) > 0 {
		return Set{}, fmt.Errorf("%w: %d trailing bytes not valid pem", ErrMalformed, len(bytes.TrimSpace(rest)))
	}
	if len(certs) == 0 {
		return Set{}, ErrNoCertificates
	}
	return Set{certs: certs}, nil
}

// Len returns the number of pinned certificates.
func (s Set) Len() int { return len(s.certs) }

// Empty reports whether the set holds no certificates.
func (s Set) Empty() bool { return len(s.certs) == 0 }

// DER returns a copy of the certificate at position i.
func (s Set) DER(i int) []byte {
	return bytes.Clone(s.certs[i])
}

// Certificates parses the pinned set into x509 form.
func (s Set) Certificates() ([]*x509.Certificate, error) {
	out := make([]*x509.Certificate, 0, len(s.certs))
	for i, der := range s.certs {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse pinned certificate %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
