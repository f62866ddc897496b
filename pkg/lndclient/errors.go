package lndclient

import (
	"errors"
	"fmt"
)

// Kind classifies a connection setup failure.
type Kind int

const (
	// KindReadFile: a certificate or macaroon file could not be read.
	KindReadFile Kind = iota + 1
	// KindParseCert: the certificate source held no usable certificates.
	KindParseCert
	// KindInvalidAddress: the address is not an http(s) URI with a host.
	KindInvalidAddress
	// KindTLSConfig: TLS could not be configured for this address and certificate.
	KindTLSConfig
	// KindConnect: the channel could not be built or an eager connect failed.
	KindConnect
)

func (k Kind) String() string {
	switch k {
	case KindReadFile:
		return "read_file"
	case KindParseCert:
		return "parse_cert"
	case KindInvalidAddress:
		return "invalid_address"
	case KindTLSConfig:
		return "tls_config"
	case KindConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// ErrNoMacaroon is returned by Connect when no macaroon source is given.
var ErrNoMacaroon = errors.New("macaroon source is required")

// ConnectError is returned by Connect and the ConnectX variants. Errors
// returned by RPCs on a connected client are gRPC status errors instead.
type ConnectError struct {
	Kind Kind
	// Path is set for file errors.
	Path string
	// Address is set for address and connect errors.
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	switch e.Kind {
	case KindReadFile:
		return fmt.Sprintf("lndclient: read %s: %v", e.Path, e.Err)
	case KindParseCert:
		if e.Path == "" {
			return fmt.Sprintf("lndclient: parse certificate: %v", e.Err)
		}
		return fmt.Sprintf("lndclient: parse certificate %s: %v", e.Path, e.Err)
	case KindInvalidAddress:
		return fmt.Sprintf("lndclient: %v", e.Err)
	case KindTLSConfig:
		return fmt.Sprintf("lndclient: %v", e.Err)
	default:
		return fmt.Sprintf("lndclient: connect %s: %v", e.Address, e.Err)
	}
}

func (e *ConnectError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *ConnectError of kind k.
func IsKind(err error, k Kind) bool {
	var ce *ConnectError
	return errors.As(err, &ce) && ce.Kind == k
}
