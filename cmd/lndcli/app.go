package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/markcallen/lnd-grpc/internal/config"
	"github.com/markcallen/lnd-grpc/internal/redact"
	"github.com/markcallen/lnd-grpc/pkg/lndclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// appEnv is what every command needs once flags and config are resolved.
type appEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	out      io.Writer
}

func newApp(out, errOut io.Writer) *cli.App {
	rt := &appEnv{out: out}

	app := &cli.App{
		Name:      "lndcli",
		Usage:     "Talk to an lnd node over gRPC with a pinned certificate",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file", EnvVars: []string{"LNDCLI_CONFIG"}},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before the configuration"},
			&cli.StringFlag{Name: "node", Aliases: []string{"n"}, Usage: "node profile to use"},
			&cli.StringFlag{Name: "address", Usage: "daemon address, https://host:port or http://host:port"},
			&cli.StringFlag{Name: "tlscert", Usage: "PEM file with the certificate(s) to pin"},
			&cli.StringFlag{Name: "macaroon", Usage: "macaroon file"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "eager", Usage: "connect and verify the certificate before the first call"},
		},
		Before: func(c *cli.Context) error {
			return rt.init(c)
		},
		Commands: commands(rt),
	}
	return app
}

func (rt *appEnv) init(c *cli.Context) error {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return err
	}

	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if v := c.String("node"); v != "" {
		cfg.Node = v
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return err
	}

	// Flags beat the environment, which beats the file.
	n := cfg.Nodes[cfg.Node]
	if v := c.String("address"); v != "" {
		n.Address = v
	}
	if c.IsSet("tlscert") {
		n.TLSCert = c.String("tlscert")
	}
	if v := c.String("macaroon"); v != "" {
		n.Macaroon = v
	}
	if c.Bool("eager") {
		n.EagerConnect = true
	}
	if n != (config.NodeConfig{}) {
		cfg.Nodes[cfg.Node] = n
	}
	if v := c.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}

	logger, err := newLogger(cfg.Logging, c.App.ErrWriter)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.logger = logger
	rt.registry = prometheus.NewRegistry()
	return nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	r, err := redact.New(cfg.RedactPatterns)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: r.ReplaceAttr}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// target is the resolved connection for the selected node.
type target struct {
	address string
	cert    lndclient.CertSource
	mac     lndclient.MacaroonSource
	opts    []lndclient.Option
	timeout time.Duration
}

func (rt *appEnv) target(needMacaroon bool) (*target, error) {
	n, ok := rt.cfg.Nodes[rt.cfg.Node]
	if !ok || n.Address == "" {
		return nil, errors.New("no node address: use --address, LND_ADDRESS or a config profile")
	}
	t := &target{
		address: n.Address,
		timeout: config.ParseDuration(n.Timeout, 30*time.Second),
	}
	if n.TLSCert != "" {
		t.cert = lndclient.CertFile(n.TLSCert)
	}
	if needMacaroon {
		if n.Macaroon == "" {
			return nil, errors.New("no macaroon: use --macaroon, LND_MACAROON or a config profile")
		}
		t.mac = lndclient.MacaroonFile(n.Macaroon)
	}

	minVersion, err := config.TLSVersion(n.TLSMinVersion)
	if err != nil {
		return nil, err
	}
	t.opts = []lndclient.Option{
		lndclient.WithLogger(rt.logger),
		lndclient.WithMetrics(rt.registry),
		lndclient.WithTLSMinVersion(minVersion),
		lndclient.WithMaxRecvMsgSize(n.MaxRecvMsgSize),
	}
	if n.EagerConnect {
		t.opts = append(t.opts, lndclient.WithEagerConnect())
	}
	if rt.cfg.Logging.Audit {
		t.opts = append(t.opts, lndclient.WithCallAudit())
	}
	return t, nil
}
