// Package transport builds the single gRPC channel shared by every lnd
// service handle: address parsing, pinned TLS and the call decorator.
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is lnd's default RPC port.
const DefaultPort = 10009

// ErrInvalidAddress is wrapped by every ParseAddress failure.
var ErrInvalidAddress = errors.New("invalid address")

// Endpoint is a parsed daemon address.
type Endpoint struct {
	Secure bool
	Host   string
	Port   int
}

// ParseAddress accepts https://host[:port] and http://host[:port].
func ParseAddress(s string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}

	var ep Endpoint
	switch strings.ToLower(u.Scheme) {
	case "https":
		ep.Secure = true
	case "http":
	case "":
		return Endpoint{}, fmt.Errorf("%w: %q: missing scheme (want https:// or http://)", ErrInvalidAddress, s)
	default:
		return Endpoint{}, fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidAddress, s, u.Scheme)
	}

	if u.Opaque != "" {
		return Endpoint{}, fmt.Errorf("%w: %q: missing //", ErrInvalidAddress, s)
	}
	if u.User != nil {
		return Endpoint{}, fmt.Errorf("%w: %q: user info not allowed", ErrInvalidAddress, s)
	}
	if u.Path != "" && u.Path != "/" {
		return Endpoint{}, fmt.Errorf("%w: %q: path %q not allowed", ErrInvalidAddress, s, u.Path)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return Endpoint{}, fmt.Errorf("%w: %q: query and fragment not allowed", ErrInvalidAddress, s)
	}

	ep.Host = u.Hostname()
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: %q: missing host", ErrInvalidAddress, s)
	}

	// "host:" names an empty port, which is not the same as no port.
	if strings.HasSuffix(u.Host, ":") {
		return Endpoint{}, fmt.Errorf("%w: %q: empty port", ErrInvalidAddress, s)
	}
	ep.Port = DefaultPort
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: %q: port %q out of range", ErrInvalidAddress, s, p)
		}
		ep.Port = port
	}
	return ep, nil
}

// Authority is host:port, bracketing IPv6 literals.
func (e Endpoint) Authority() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Target is the gRPC dial target.
func (e Endpoint) Target() string {
	return "dns:///" + e.Authority()
}

// Scheme is the request scheme every call is sent with.
func (e Endpoint) Scheme() string {
	if e.Secure {
		return "https"
	}
	return "http"
}

func (e Endpoint) String() string {
	return e.Scheme() + "://" + e.Authority()
}
