package lndclient

import (
	"context"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/chainrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/lnrpc/peersrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lightningnetwork/lnd/lnrpc/signrpc"
	"github.com/lightningnetwork/lnd/lnrpc/verrpc"
	"github.com/lightningnetwork/lnd/lnrpc/walletrpc"
	"google.golang.org/grpc"
)

// Single is a connection narrowed to one service.
type Single[T any] struct {
	conn   *conn
	client T
}

// Client returns the service client.
func (s *Single[T]) Client() T { return s.client }

// ConnID identifies this connection in logs.
func (s *Single[T]) ConnID() string { return s.conn.id }

// Close releases the connection.
func (s *Single[T]) Close() error { return s.conn.ch.Close() }

func connectSingle[T any](ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts []Option, newClient func(grpc.ClientConnInterface) T) (*Single[T], error) {
	cfg := newConfig(opts)
	c, err := dial(ctx, cfg, address, cert, mac)
	if err != nil {
		return nil, err
	}
	return &Single[T]{conn: c, client: newClient(c.ch)}, nil
}

func noMacaroon[T any](address string) (*Single[T], error) {
	return nil, &ConnectError{Kind: KindReadFile, Address: address, Err: ErrNoMacaroon}
}

// ConnectLightning connects to the Lightning service only.
func ConnectLightning(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[lnrpc.LightningClient], error) {
	if mac == nil {
		return noMacaroon[lnrpc.LightningClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, lnrpc.NewLightningClient)
}

// ConnectWalletKit connects to the WalletKit sub-server only.
func ConnectWalletKit(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[walletrpc.WalletKitClient], error) {
	if mac == nil {
		return noMacaroon[walletrpc.WalletKitClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, walletrpc.NewWalletKitClient)
}

// ConnectSigner connects to the Signer sub-server only.
func ConnectSigner(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[signrpc.SignerClient], error) {
	if mac == nil {
		return noMacaroon[signrpc.SignerClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, signrpc.NewSignerClient)
}

// ConnectPeers connects to the Peers sub-server only.
func ConnectPeers(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[peersrpc.PeersClient], error) {
	if mac == nil {
		return noMacaroon[peersrpc.PeersClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, peersrpc.NewPeersClient)
}

// ConnectVersioner connects to the Versioner sub-server only.
func ConnectVersioner(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[verrpc.VersionerClient], error) {
	if mac == nil {
		return noMacaroon[verrpc.VersionerClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, verrpc.NewVersionerClient)
}

// ConnectInvoices connects to the Invoices sub-server only.
func ConnectInvoices(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[invoicesrpc.InvoicesClient], error) {
	if mac == nil {
		return noMacaroon[invoicesrpc.InvoicesClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, invoicesrpc.NewInvoicesClient)
}

// ConnectRouter connects to the Router sub-server only.
func ConnectRouter(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[routerrpc.RouterClient], error) {
	if mac == nil {
		return noMacaroon[routerrpc.RouterClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, routerrpc.NewRouterClient)
}

// ConnectState connects to the State service only.
func ConnectState(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[lnrpc.StateClient], error) {
	if mac == nil {
		return noMacaroon[lnrpc.StateClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, lnrpc.NewStateClient)
}

// ConnectChainNotifier connects to the ChainNotifier sub-server only.
func ConnectChainNotifier(ctx context.Context, address string, cert CertSource, mac MacaroonSource, opts ...Option) (*Single[chainrpc.ChainNotifierClient], error) {
	if mac == nil {
		return noMacaroon[chainrpc.ChainNotifierClient](address)
	}
	return connectSingle(ctx, address, cert, mac, opts, chainrpc.NewChainNotifierClient)
}

// ConnectWalletUnlocker connects to the WalletUnlocker service of a daemon
// whose wallet is locked or not yet created. No macaroon exists at that point,
// so none is sent.
func ConnectWalletUnlocker(ctx context.Context, address string, cert CertSource, opts ...Option) (*Single[lnrpc.WalletUnlockerClient], error) {
	return connectSingle(ctx, address, cert, nil, opts, lnrpc.NewWalletUnlockerClient)
}
