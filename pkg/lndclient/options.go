package lndclient

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// RetryConfig bounds the reconnect backoff of long-lived streams.
type RetryConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Option configures Connect and the ConnectX variants.
type Option func(*clientConfig)

type clientConfig struct {
	logger         *slog.Logger
	eager          bool
	maxRecvMsgSize int
	tlsMinVersion  uint16
	registerer     prometheus.Registerer
	audit          bool
	dialOpts       []grpc.DialOption
	retry          RetryConfig
}

func newConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{
		logger: slog.Default(),
		retry: RetryConfig{
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
	}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEagerConnect makes Connect establish the connection (and run the
// pinning check) before returning.
func WithEagerConnect() Option {
	return func(c *clientConfig) { c.eager = true }
}

// WithMaxRecvMsgSize overrides the 200 MiB default receive limit.
func WithMaxRecvMsgSize(n int) Option {
	return func(c *clientConfig) { c.maxRecvMsgSize = n }
}

// WithTLSMinVersion sets the minimum TLS version (tls.VersionTLS12 or tls.VersionTLS13).
func WithTLSMinVersion(v uint16) Option {
	return func(c *clientConfig) { c.tlsMinVersion = v }
}

// WithMetrics records call and connect counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *clientConfig) { c.registerer = reg }
}

// WithCallAudit logs the outcome of every RPC at info level.
func WithCallAudit() Option {
	return func(c *clientConfig) { c.audit = true }
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *clientConfig) { c.dialOpts = append(c.dialOpts, opts...) }
}

// WithStreamRetry sets the reconnect backoff for InvoiceStream.
func WithStreamRetry(cfg RetryConfig) Option {
	return func(c *clientConfig) { c.retry = cfg }
}
