// Package lndclient connects to an lnd node over gRPC with a pinned TLS
// certificate and macaroon authentication, and hands back lnd's generated
// service clients sharing one channel.
package lndclient

import (
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

// Client bundles every service client. It is safe for concurrent use and
// must be closed when no longer needed.
type Client struct {
	conn *conn

	lightning     lnrpc.LightningClient
	walletKit     walletrpc.WalletKitClient
	signer        signrpc.SignerClient
	peers         peersrpc.PeersClient
	versioner     verrpc.VersionerClient
	invoices      invoicesrpc.InvoicesClient
	router        routerrpc.RouterClient
	state         lnrpc.StateClient
	chainNotifier chainrpc.ChainNotifierClient
}

func newClient(c *conn) *Client {
	return &Client{
		conn:          c,
		lightning:     lnrpc.NewLightningClient(c.ch),
		walletKit:     walletrpc.NewWalletKitClient(c.ch),
		signer:        signrpc.NewSignerClient(c.ch),
		peers:         peersrpc.NewPeersClient(c.ch),
		versioner:     verrpc.NewVersionerClient(c.ch),
		invoices:      invoicesrpc.NewInvoicesClient(c.ch),
		router:        routerrpc.NewRouterClient(c.ch),
		state:         lnrpc.NewStateClient(c.ch),
		chainNotifier: chainrpc.NewChainNotifierClient(c.ch),
	}
}

// Lightning returns the main lnrpc.Lightning service client.
func (c *Client) Lightning() lnrpc.LightningClient { return c.lightning }

// WalletKit returns the walletrpc sub-server client.
func (c *Client) WalletKit() walletrpc.WalletKitClient { return c.walletKit }

// Signer returns the signrpc sub-server client.
func (c *Client) Signer() signrpc.SignerClient { return c.signer }

// Peers returns the peersrpc sub-server client.
func (c *Client) Peers() peersrpc.PeersClient { return c.peers }

// Versioner returns the verrpc sub-server client.
func (c *Client) Versioner() verrpc.VersionerClient { return c.versioner }

// Invoices returns the invoicesrpc sub-server client (hold invoices).
func (c *Client) Invoices() invoicesrpc.InvoicesClient { return c.invoices }

// Router returns the routerrpc sub-server client.
func (c *Client) Router() routerrpc.RouterClient { return c.router }

// State returns the State service client; it answers while the wallet is locked.
func (c *Client) State() lnrpc.StateClient { return c.state }

// ChainNotifier returns the chainrpc sub-server client.
func (c *Client) ChainNotifier() chainrpc.ChainNotifierClient { return c.chainNotifier }

// Conn returns the shared channel, for services this package does not wrap.
func (c *Client) Conn() grpc.ClientConnInterface { return c.conn.ch }

// ConnID identifies this connection in logs.
func (c *Client) ConnID() string { return c.conn.id }

// Close releases the connection. Calls in flight fail with Canceled.
func (c *Client) Close() error {
	return c.conn.ch.Close()
}
