package pinning

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"sync/atomic"
)

// MismatchKind tells a chain length mismatch apart from a content mismatch.
type MismatchKind int

const (
	LengthMismatch MismatchKind = iota + 1
	ValueMismatch
)

func (k MismatchKind) String() string {
	switch k {
	case LengthMismatch:
		return "length mismatch"
	case ValueMismatch:
		return "value mismatch"
	default:
		return "unknown mismatch"
	}
}

// MismatchError is returned from the handshake when the presented chain is
// not the pinned one.
type MismatchError struct {
	Kind MismatchKind
	// Position is the first differing index for ValueMismatch, -1 otherwise.
	Position  int
	Presented int
	Pinned    int
}

func (e *MismatchError) Error() string {
	if e.Kind == LengthMismatch {
		return fmt.Sprintf("pinning: server presented %d certificate(s), %d pinned", e.Presented, e.Pinned)
	}
	return fmt.Sprintf("pinning: certificate at position %d does not match pinned certificate", e.Position)
}

// Policy decides whether a presented chain is trusted.
type Policy interface {
	Verify(presented [][]byte) error
}

// Verifier accepts exactly the pinned chain, byte for byte. CA chains,
// expiry and hostnames are not consulted.
type Verifier struct {
	pinned Set
	last   atomic.Pointer[MismatchError]
}

// NewVerifier returns a Verifier for the given set.
func NewVerifier(pinned Set) *Verifier {
	return &Verifier{pinned: pinned}
}

// Verify implements Policy.
func (v *Verifier) Verify(presented [][]byte) error {
	if len(presented) != len(v.pinned.certs) {
		return v.fail(&MismatchError{
			Kind:      LengthMismatch,
			Position:  -1,
			Presented: len(presented),
			Pinned:    len(v.pinned.certs),
		})
	}
	for i, raw := range presented {
		if !bytes.Equal(raw, v.pinned.certs[i]) {
			return v.fail(&MismatchError{
				Kind:      ValueMismatch,
				Position:  i,
				Presented: len(presented),
				Pinned:    len(v.pinned.certs),
			})
		}
	}
	return nil
}

// VerifyPeerCertificate has the signature expected by tls.Config.
func (v *Verifier) VerifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return v.Verify(rawCerts)
}

// LastError returns the most recent handshake rejection, or nil.
func (v *Verifier) LastError() error {
	if e := v.last.Load(); e != nil {
		return e
	}
	return nil
}

func (v *Verifier) fail(e *MismatchError) error {
	v.last.Store(e)
	return e
}
