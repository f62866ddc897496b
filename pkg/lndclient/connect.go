package lndclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/markcallen/lnd-grpc/internal/macaroon"
	"github.com/markcallen/lnd-grpc/internal/metrics"
	"github.com/markcallen/lnd-grpc/internal/pinning"
	"github.com/markcallen/lnd-grpc/internal/transport"
	"golang.org/x/sync/errgroup"
)

// Connect builds a client for every supported lnd service, all sharing one
// channel to address. cert pins the daemon's certificate for https addresses
// and must be nil for http addresses.
//
// The connection is lazy unless WithEagerConnect is given; a lazy client
// reports unreachable daemons and pinning mismatches on its first call.
func Connect(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Client, error) {
	if mac == nil {
		return nil, &ConnectError{Kind: KindReadFile, Address: address, Err: ErrNoMacaroon}
	}
	cfg := newConfig(opts)
	conn, err := dial(ctx, cfg, address, cert, mac)
	if err != nil {
		return nil, err
	}
	return newClient(conn), nil
}

// conn is a dialed channel plus the per-connection context every handle
// shares.
type conn struct {
	ch      *transport.Channel
	id      string
	logger  *slog.Logger
	metrics *metrics.Metrics
	retry   RetryConfig
}

func dial(ctx context.Context, cfg *clientConfig, address string, cert CertSource, mac MacaroonSource) (*conn, error) {
	var m *metrics.Metrics
	if cfg.registerer != nil {
		m = metrics.New(cfg.registerer)
	}

	id := uuid.NewString()
	logger := cfg.logger.With("conn_id", id)

	ch, err := setup(ctx, cfg, logger, m, address, cert, mac)
	if err != nil {
		var ce *ConnectError
		if errors.As(err, &ce) {
			m.ObserveConnect(ce.Kind.String())
			logger.Debug("connect failed", "address", address, "kind", ce.Kind.String(), "error", err)
		} else {
			m.ObserveConnect("canceled")
		}
		return nil, err
	}
	m.ObserveConnect("ok")

	return &conn{ch: ch, id: id, logger: logger, metrics: m, retry: cfg.retry}, nil
}

func setup(ctx context.Context, cfg *clientConfig, logger *slog.Logger, m *metrics.Metrics, address string, cert CertSource, mac MacaroonSource) (*transport.Channel, error) {
	// Address problems are reported before any file is touched.
	ep, err := transport.ParseAddress(address)
	if err != nil {
		return nil, &ConnectError{Kind: KindInvalidAddress, Address: address, Err: err}
	}
	if ep.Secure && cert == nil {
		return nil, &ConnectError{Kind: KindTLSConfig, Address: address,
			Err: fmt.Errorf("%w: https address requires a certificate", transport.ErrTLSConfig)}
	}
	if !ep.Secure && cert != nil {
		return nil, &ConnectError{Kind: KindTLSConfig, Address: address,
			Err: fmt.Errorf("%w: http address must not be given a certificate", transport.ErrTLSConfig)}
	}

	var (
		pemData []byte
		cred    macaroon.Credential
	)
	g, gctx := errgroup.WithContext(ctx)
	if cert != nil {
		g.Go(func() error {
			data, err := cert.ReadPEM(gctx)
			if err != nil {
				return readError(err, cert.Path())
			}
			pemData = data
			return nil
		})
	}
	if mac != nil {
		g.Go(func() error {
			c, err := mac.Load(gctx)
			if err != nil {
				return readError(err, mac.Path())
			}
			cred = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	logger.Debug("credentials loaded", "address", ep.String(), "pinned", cert != nil, "macaroon", mac != nil)

	opts := transport.Options{
		MaxRecvMsgSize: cfg.maxRecvMsgSize,
		Metrics:        m,
		DialOptions:    cfg.dialOpts,
	}
	if mac != nil {
		opts.PerRPC = cred
	}
	if cfg.audit {
		opts.AuditLogger = logger
	}

	if cert != nil {
		set, err := pinning.Parse(pemData)
		if err != nil {
			return nil, &ConnectError{Kind: KindParseCert, Path: cert.Path(), Err: err}
		}
		tlsCfg, verifier, err := transport.ClientTLSConfig(set, transport.TLSOptions{MinVersion: cfg.tlsMinVersion})
		if err != nil {
			return nil, &ConnectError{Kind: KindTLSConfig, Address: address, Err: err}
		}
		opts.TLS = tlsCfg
		opts.Verifier = verifier
		logger.Debug("certificate pinned", "certificates", set.Len())
	}

	ch, err := transport.Dial(ep, opts)
	if err != nil {
		if errors.Is(err, transport.ErrTLSConfig) {
			return nil, &ConnectError{Kind: KindTLSConfig, Address: address, Err: err}
		}
		return nil, &ConnectError{Kind: KindConnect, Address: address, Err: err}
	}

	if cfg.eager {
		if err := ch.WaitReady(ctx); err != nil {
			_ = ch.Close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &ConnectError{Kind: KindConnect, Address: address, Err: err}
		}
		logger.Debug("channel ready", "address", ep.String())
	}
	return ch, nil
}

func readError(err error, path string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ConnectError{Kind: KindReadFile, Path: path, Err: err}
}
