package lndtest

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Alias is the node alias GetInfo reports.
const Alias = "lndtest"

// Lightning is the fake Lightning service.
type Lightning struct {
	lnrpc.UnimplementedLightningServer

	mu       sync.Mutex
	invoices []*lnrpc.Invoice
	// failStreams is the number of SubscribeInvoices calls that deliver one
	// invoice and then fail with failCode.
	failStreams   int
	failCode      codes.Code
	subscriptions []*lnrpc.InvoiceSubscription
}

// GetInfo reports a fixed alias.
func (l *Lightning) GetInfo(context.Context, *lnrpc.GetInfoRequest) (*lnrpc.GetInfoResponse, error) {
	return &lnrpc.GetInfoResponse{Alias: Alias, Version: Version, SyncedToChain: true}, nil
}

// AddInvoice stores the invoice and assigns the next add index.
func (l *Lightning) AddInvoice(_ context.Context, in *lnrpc.Invoice) (*lnrpc.AddInvoiceResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := uint64(len(l.invoices) + 1)
	l.invoices = append(l.invoices, &lnrpc.Invoice{Memo: in.Memo, Value: in.Value, AddIndex: idx})
	return &lnrpc.AddInvoiceResponse{AddIndex: idx}, nil
}

// FailStreams makes the next n SubscribeInvoices calls fail with code after
// delivering at most one invoice.
func (l *Lightning) FailStreams(n int, code codes.Code) {
	l.mu.Lock()
	l.failStreams = n
	l.failCode = code
	l.mu.Unlock()
}

// Subscriptions returns the requests SubscribeInvoices was called with.
func (l *Lightning) Subscriptions() []*lnrpc.InvoiceSubscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*lnrpc.InvoiceSubscription, len(l.subscriptions))
	copy(out, l.subscriptions)
	return out
}

// SubscribeInvoices sends every stored invoice past req.AddIndex and ends the
// stream.
func (l *Lightning) SubscribeInvoices(req *lnrpc.InvoiceSubscription, stream lnrpc.Lightning_SubscribeInvoicesServer) error {
	l.mu.Lock()
	l.subscriptions = append(l.subscriptions, &lnrpc.InvoiceSubscription{AddIndex: req.AddIndex, SettleIndex: req.SettleIndex})
	var pending []*lnrpc.Invoice
	for _, inv := range l.invoices {
		if inv.AddIndex > req.AddIndex {
			pending = append(pending, inv)
		}
	}
	fail := l.failStreams > 0
	code := l.failCode
	if fail {
		l.failStreams--
	}
	l.mu.Unlock()

	for i, inv := range pending {
		if err := stream.Send(inv); err != nil {
			return err
		}
		if fail && i == 0 {
			break
		}
	}
	if fail {
		return status.Error(code, "lndtest: stream failed")
	}
	return nil
}
