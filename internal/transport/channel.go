package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/markcallen/lnd-grpc/internal/metrics"
	"github.com/markcallen/lnd-grpc/internal/pinning"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// DefaultMaxRecvMsgSize matches the limit lnd's own clients use.
const DefaultMaxRecvMsgSize = 200 * 1024 * 1024

// ErrUnreachable is returned by WaitReady when the channel failed for a
// reason other than a pinning mismatch. The last dial error, if any, is
// wrapped alongside it.
var ErrUnreachable = errors.New("daemon unreachable")

// Options configures Dial.
type Options struct {
	// TLS must be set for https endpoints and nil for http endpoints.
	TLS *tls.Config
	// Verifier is consulted by WaitReady to explain handshake failures.
	Verifier       *pinning.Verifier
	PerRPC         credentials.PerRPCCredentials
	MaxRecvMsgSize int
	Metrics        *metrics.Metrics
	// AuditLogger enables per-call audit logging when non-nil.
	AuditLogger *slog.Logger
	DialOptions []grpc.DialOption
}

// Channel is the shared, lazily connected channel to one daemon. Every call
// goes out with the endpoint's scheme and authority and keeps its method path.
// It is safe for concurrent use.
type Channel struct {
	conn     *grpc.ClientConn
	endpoint Endpoint
	verifier *pinning.Verifier
	metrics  *metrics.Metrics
	dialErr  atomic.Pointer[error]
}

var _ grpc.ClientConnInterface = (*Channel)(nil)

// Dial builds the channel without performing any I/O.
func Dial(ep Endpoint, opts Options) (*Channel, error) {
	if ep.Secure && opts.TLS == nil {
		return nil, fmt.Errorf("%w: %s requires a pinned certificate", ErrTLSConfig, ep)
	}
	if !ep.Secure && opts.TLS != nil {
		return nil, fmt.Errorf("%w: %s is plaintext but a certificate was supplied", ErrTLSConfig, ep)
	}

	maxRecv := opts.MaxRecvMsgSize
	if maxRecv <= 0 {
		maxRecv = DefaultMaxRecvMsgSize
	}

	c := &Channel{
		endpoint: ep,
		verifier: opts.Verifier,
		metrics:  opts.Metrics,
	}

	dialOpts := []grpc.DialOption{
		grpc.WithAuthority(ep.Authority()),
		grpc.WithContextDialer(c.dial),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecv)),
	}

	// Transport credentials
	if opts.TLS != nil {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(opts.TLS)))
	} else {
		// Cleartext HTTP/2 with prior knowledge.
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if opts.PerRPC != nil {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(opts.PerRPC))
	}
	if opts.AuditLogger != nil {
		dialOpts = append(dialOpts,
			grpc.WithChainUnaryInterceptor(UnaryAuditInterceptor(opts.AuditLogger)),
			grpc.WithChainStreamInterceptor(StreamAuditInterceptor(opts.AuditLogger)),
		)
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(ep.Target(), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep, err)
	}
	c.conn = conn
	return c, nil
}

// dial opens the TCP connection and remembers why it failed, so WaitReady
// can report the cause behind a TransientFailure.
func (c *Channel) dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.dialErr.Store(&err)
		return nil, err
	}
	c.dialErr.Store(nil)
	return conn, nil
}

func (c *Channel) lastDialError() error {
	if p := c.dialErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Endpoint returns the endpoint the channel was dialed with.
func (c *Channel) Endpoint() Endpoint { return c.endpoint }

// Invoke implements grpc.ClientConnInterface.
func (c *Channel) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	err := c.conn.Invoke(ctx, method, args, reply, opts...)
	c.metrics.ObserveCall(method, status.Code(err).String())
	return err
}

// NewStream implements grpc.ClientConnInterface.
func (c *Channel) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	cs, err := c.conn.NewStream(ctx, desc, method, opts...)
	c.metrics.ObserveStream(method, status.Code(err).String())
	return cs, err
}

// WaitReady connects eagerly and blocks until the channel is ready, the
// connection attempt fails or ctx is done. A handshake rejected by the
// pinning verifier returns the *pinning.MismatchError.
func (c *Channel) WaitReady(ctx context.Context) error {
	c.conn.Connect()
	for {
		state := c.conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure:
			if c.verifier != nil {
				if err := c.verifier.LastError(); err != nil {
					return err
				}
			}
			if err := c.lastDialError(); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrUnreachable, c.endpoint, err)
			}
			return fmt.Errorf("%w: %s", ErrUnreachable, c.endpoint)
		case connectivity.Shutdown:
			return fmt.Errorf("%w: channel closed", ErrUnreachable)
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

// Close tears down the connection; in-flight calls fail with Canceled.
func (c *Channel) Close() error {
	return c.conn.Close()
}
