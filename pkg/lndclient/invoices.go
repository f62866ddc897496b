package lndclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const subscribeInvoicesMethod = "/lnrpc.Lightning/SubscribeInvoices"

// InvoiceStream is a resumable SubscribeInvoices stream. The cursor is
// persisted after every handled invoice, so a restarted subscriber with the
// same store and id picks up where it stopped.
type InvoiceStream struct {
	client       *Client
	subscriberID string
	store        CursorStore
	logger       *slog.Logger
	cursor       Cursor
}

// SubscribeInvoices prepares a stream for subscriberID. A nil store keeps
// the cursor in memory only.
func (c *Client) SubscribeInvoices(subscriberID string, store CursorStore) *InvoiceStream {
	if store == nil {
		store = NewMemoryCursorStore()
	}
	return &InvoiceStream{
		client:       c,
		subscriberID: subscriberID,
		store:        store,
		logger:       c.conn.logger.With("subscriber_id", subscriberID),
	}
}

// Cursor returns the last position handled.
func (s *InvoiceStream) Cursor() Cursor { return s.cursor }

// RecvAll delivers invoices to fn until ctx is done, the daemon ends the
// stream, or fn returns an error. Unavailable and DeadlineExceeded errors
// reconnect with exponential backoff; any other error is returned as is.
func (s *InvoiceStream) RecvAll(ctx context.Context, fn func(*lnrpc.Invoice) error) error {
	node := s.client.conn.ch.Endpoint().Authority()
	cursor, err := s.store.LoadCursor(ctx, node, s.subscriberID)
	if err != nil {
		return err
	}
	s.cursor = cursor

	retry := s.client.conn.retry
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retry.InitialBackoff
	b.MaxInterval = retry.MaxBackoff
	b.MaxElapsedTime = 0

	op := func() error {
		progressed, err := s.recvOnce(ctx, node, fn)
		if progressed {
			b.Reset()
		}
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if ctx.Err() != nil || !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		s.client.conn.metrics.ObserveRetry(subscribeInvoicesMethod)
		s.logger.Warn("invoice stream disconnected, reconnecting",
			"add_index", s.cursor.AddIndex,
			"settle_index", s.cursor.SettleIndex,
			"error", err,
			"backoff", d,
		)
	}

	err = backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *InvoiceStream) recvOnce(ctx context.Context, node string, fn func(*lnrpc.Invoice) error) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.client.lightning.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{
		AddIndex:    s.cursor.AddIndex,
		SettleIndex: s.cursor.SettleIndex,
	})
	if err != nil {
		return false, err
	}

	progressed := false
	for {
		inv, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return progressed, nil
		}
		if err != nil {
			return progressed, err
		}
		progressed = true

		if err := fn(inv); err != nil {
			return progressed, backoff.Permanent(err)
		}
		s.cursor = s.cursor.advance(inv.AddIndex, inv.SettleIndex)
		if err := s.store.SaveCursor(ctx, node, s.subscriberID, s.cursor); err != nil {
			return progressed, backoff.Permanent(err)
		}
	}
}

func shouldRetry(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
