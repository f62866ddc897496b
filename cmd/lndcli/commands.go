package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lightningnetwork/lnd/lnrpc/verrpc"
	"github.com/markcallen/lnd-grpc/internal/macaroon"
	"github.com/markcallen/lnd-grpc/internal/pki"
	"github.com/markcallen/lnd-grpc/pkg/lndclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func commands(rt *appEnv) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "getinfo",
			Usage:  "Show the node's GetInfo response",
			Action: rt.getInfo,
		},
		{
			Name:   "getversion",
			Usage:  "Show the daemon version (Versioner service)",
			Action: rt.getVersion,
		},
		{
			Name:   "getstate",
			Usage:  "Show the wallet state (State service, works while locked)",
			Action: rt.getState,
		},
		{
			Name:  "subscribe-invoices",
			Usage: "Stream invoice updates, resuming from the stored cursor",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "subscriber-id", Value: "lndcli", Usage: "cursor key for this subscriber"},
				&cli.StringFlag{Name: "cursor-db", Usage: "bbolt cursor database (overrides cursors.path)"},
				&cli.StringFlag{Name: "metrics-listen", Usage: "serve /metrics on this address (overrides metrics.listen)"},
			},
			Action: rt.subscribeInvoices,
		},
		{
			Name:  "add-hold-invoice",
			Usage: "Add a hold invoice for a payment hash",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "hash", Required: true, Usage: "hex payment hash"},
				&cli.Int64Flag{Name: "amt", Usage: "amount in satoshis"},
				&cli.StringFlag{Name: "memo"},
				&cli.Int64Flag{Name: "expiry", Value: 3600, Usage: "expiry in seconds"},
			},
			Action: rt.addHoldInvoice,
		},
		{
			Name:  "track-payment",
			Usage: "Follow a payment until it succeeds or fails",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "hash", Required: true, Usage: "hex payment hash"},
			},
			Action: rt.trackPayment,
		},
		{
			Name:   "intercept-htlcs",
			Usage:  "Register an HTLC interceptor that logs and resumes every forward",
			Action: rt.interceptHTLCs,
		},
		{
			Name:   "gen-seed",
			Usage:  "Generate a wallet seed (WalletUnlocker, no macaroon)",
			Action: rt.genSeed,
		},
		{
			Name:  "init-wallet",
			Usage: "Generate a seed and initialize the wallet with it",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"LND_WALLET_PASSWORD"}},
				&cli.StringFlag{Name: "macaroon-out", Usage: "write the returned admin macaroon here"},
			},
			Action: rt.initWallet,
		},
		{
			Name:      "inspect-macaroon",
			Usage:     "Decode a macaroon file",
			ArgsUsage: "<file>",
			Action:    rt.inspectMacaroon,
		},
		{
			Name:  "gen-cert",
			Usage: "Create an lnd-style self-signed certificate for a local daemon",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
				&cli.StringSliceFlag{Name: "host", Usage: "extra DNS name or IP SAN"},
				&cli.StringFlag{Name: "name", Value: "tls", Usage: "base file name"},
			},
			Action: rt.genCert,
		},
		{
			Name:      "bundle-certs",
			Usage:     "Concatenate certificates into one pin file, in order",
			ArgsUsage: "<cert>...",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Required: true},
			},
			Action: rt.bundleCerts,
		},
	}
}

func (rt *appEnv) callContext(c *cli.Context, t *target) (context.Context, context.CancelFunc) {
	if t.timeout > 0 {
		return context.WithTimeout(c.Context, t.timeout)
	}
	return context.WithCancel(c.Context)
}

func (rt *appEnv) getInfo(c *cli.Context) error {
	t, err := rt.target(true)
	if err != nil {
		return err
	}
	ctx, cancel := rt.callContext(c, t)
	defer cancel()

	ln, err := lndclient.ConnectLightning(ctx, t.address, t.cert, t.mac, t.opts...)
	if err != nil {
		return err
	}
	defer ln.Close()

	resp, err := ln.Client().GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return err
	}
	return printProto(rt.out, resp)
}

func (rt *appEnv) getVersion(c *cli.Context) error {
	t, err := rt.target(true)
	if err != nil {
		return err
	}
	ctx, cancel := rt.callContext(c, t)
	defer cancel()

	v, err := lndclient.ConnectVersioner(ctx, t.address, t.cert, t.mac, t.opts...)
	if err != nil {
		return err
	}
	defer v.Close()

	resp, err := v.Client().GetVersion(ctx, &verrpc.VersionRequest{})
	if err != nil {
		return err
	}
	return printProto(rt.out, resp)
}

func (rt *appEnv) getState(c *cli.Context) error {
	t, err := rt.target(true)
	if err != nil {
		return err
	}
	ctx, cancel := rt.callContext(c, t)
	defer cancel()

	s, err := lndclient.ConnectState(ctx, t.address, t.cert, t.mac, t.opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.Client().GetState(ctx, &lnrpc.GetStateRequest{})
	if err != nil {
		return err
	}
	return printProto(rt.out, resp)
}

func (rt *appEnv) subscribeInvoices(c *cli.Context) error {
	t, err := rt.target(true)
	if err != nil {
		return err
	}
	// Long-lived: only the signal context bounds it.
	ctx := c.Context

	client, err := lndclient.Connect(ctx, t.address, t.cert, t.mac, t.opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	var store lndclient.CursorStore = lndclient.NewMemoryCursorStore()
	dbPath := rt.cfg.Cursors.Path
	if v := c.String("cursor-db"); v != "" {
		dbPath = v
	}
	if dbPath != "" {
		bolt, err := lndclient.OpenBoltCursorStore(dbPath)
		if err != nil {
			return err
		}
		defer bolt.Close()
		store = bolt
	}

	listen := rt.cfg.Metrics.Listen
	if v := c.String("metrics-listen"); v != "" {
		listen = v
	}
	if listen != "" {
		srv := rt.serveMetrics(listen)
		defer srv.Close()
	}

	rt.logger.Info("subscribing to invoices", "conn_id", client.ConnID(), "subscriber_id", c.String("subscriber-id"))
	err = client.SubscribeInvoices(c.String("subscriber-id"), store).RecvAll(ctx, func(inv *lnrpc.Invoice) error {
		return printProto(rt.out, inv)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (rt *appEnv) serveMetrics(listen string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server", "listen", listen, "error", err)
		}
	}()
	rt.logger.Info("serving metrics", "listen", listen)
	return srv
}

func (rt *appEnv) addHoldInvoice(c *cli.Context) error {
	hash, err := hex.DecodeString(c.String("hash"))
	if err != nil || len(hash) != 32 {
		return fmt.Errorf("--hash must be 32 bytes of hex")
	}
	t, err := rt.target(true)
	if err != nil {
		return err
	}
	ctx, cancel := rt.callContext(c, t)
	defer cancel()

	inv, err := lndclient.ConnectInvoices(ctx, t.address, t.cert, t.mac, t.opts...)
	if err != nil {
		return err
	}
	defer inv.Close()

	resp, err := inv.Client().AddHoldInvoice(ctx, &invoicesrpc.AddHoldInvoiceRequest{
		Hash:   hash,
		Value:  c.Int64("amt"),
		Memo:   c.String("memo"),
		Expiry: c.Int64("expiry"),
	})
	if err != nil {
		return err
	}
	return printProto(rt.out, resp)
}

func (rt *appEnv) trackPayment(c *cli.Context) error {
	hash, err := hex.DecodeString(c.String("hash"))
	if err != nil || len(hash) != 32 {
		return fmt.Errorf("--hash must be 32 bytes of hex")
	}
	t, err := rt.target(true)
	if err != nil {
		return err
	}
	ctx := c.Context

	router, err := lndclient.ConnectRouter(ctx, t.address, t.cert, t.mac, t.opts...)
	if err != nil {
		return err
	}
	defer router.Close()

	stream, err := router.Client().TrackPaymentV2(ctx, &routerrpc.TrackPaymentRequest{PaymentHash: hash})
	if err != nil {
		return err
	}
	for {
		p, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := printProto(rt.out, p); err != nil {
			return err
		}
		switch p.Status {
		case lnrpc.Payment_SUCCEEDED, lnrpc.Payment_FAILED:
			return nil
		}
	}
}

func (rt *appEnv) interceptHTLCs(c *cli.Context) error {
	t, err := rt.target(true)
	if err != nil {
		return err
	}
	ctx := c.Context

	router, err := lndclient.ConnectRouter(ctx, t.address, t.cert, t.mac, t.opts...)
	if err != nil {
		return err
	}
	defer router.Close()

	stream, err := router.Client().HtlcInterceptor(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("htlc interceptor registered")
	for {
		req, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		rt.logger.Info("intercepted htlc",
			"chan_id", req.IncomingCircuitKey.GetChanId(),
			"htlc_id", req.IncomingCircuitKey.GetHtlcId(),
			"amount_msat", req.IncomingAmountMsat,
			"outgoing_chan_id", req.OutgoingRequestedChanId,
		)
		err = stream.Send(&routerrpc.ForwardHtlcInterceptResponse{
			IncomingCircuitKey: req.IncomingCircuitKey,
			Action:             routerrpc.ResolveHoldForwardAction_RESUME,
		})
		if err != nil {
			return err
		}
	}
}

func (rt *appEnv) genSeed(c *cli.Context) error {
	t, err := rt.target(false)
	if err != nil {
		return err
	}
	ctx, cancel := rt.callContext(c, t)
	defer cancel()

	u, err := lndclient.ConnectWalletUnlocker(ctx, t.address, t.cert, t.opts...)
	if err != nil {
		return err
	}
	defer u.Close()

	resp, err := u.Client().GenSeed(ctx, &lnrpc.GenSeedRequest{})
	if err != nil {
		return err
	}
	return printProto(rt.out, resp)
}

func (rt *appEnv) initWallet(c *cli.Context) error {
	password := c.String("password")
	if len(password) < 8 {
		return errors.New("wallet password must have at least 8 characters")
	}
	t, err := rt.target(false)
	if err != nil {
		return err
	}
	ctx, cancel := rt.callContext(c, t)
	defer cancel()

	u, err := lndclient.ConnectWalletUnlocker(ctx, t.address, t.cert, t.opts...)
	if err != nil {
		return err
	}
	defer u.Close()

	seed, err := u.Client().GenSeed(ctx, &lnrpc.GenSeedRequest{})
	if err != nil {
		return err
	}
	resp, err := u.Client().InitWallet(ctx, &lnrpc.InitWalletRequest{
		WalletPassword:     []byte(password),
		CipherSeedMnemonic: seed.CipherSeedMnemonic,
	})
	if err != nil {
		return err
	}

	if out := c.String("macaroon-out"); out != "" {
		if err := os.WriteFile(out, resp.AdminMacaroon, 0o600); err != nil {
			return fmt.Errorf("write macaroon: %w", err)
		}
		rt.logger.Info("admin macaroon written", "path", out)
	}
	return printJSON(rt.out, map[string]any{"cipher_seed_mnemonic": seed.CipherSeedMnemonic})
}

func (rt *appEnv) inspectMacaroon(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = rt.cfg.Nodes[rt.cfg.Node].Macaroon
	}
	if path == "" {
		return errors.New("usage: lndcli inspect-macaroon <file>")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := macaroon.Inspect(raw)
	if err != nil {
		return err
	}
	return printJSON(rt.out, map[string]any{
		"id_hex":      hex.EncodeToString(info.ID),
		"location":    info.Location,
		"version":     info.Version,
		"caveats":     info.Caveats,
		"third_party": info.ThirdParty,
	})
}

func (rt *appEnv) genCert(c *cli.Context) error {
	certPath, keyPath, err := pki.GenerateSelfSigned(c.String("out"), pki.SelfSignedConfig{
		Hosts:    c.StringSlice("host"),
		BaseName: c.String("name"),
	})
	if err != nil {
		return err
	}
	return printJSON(rt.out, map[string]string{"cert": certPath, "key": keyPath})
}

func (rt *appEnv) bundleCerts(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("usage: lndcli bundle-certs --out <file> <cert>...")
	}
	return pki.BuildBundle(c.String("out"), c.Args().Slice()...)
}
