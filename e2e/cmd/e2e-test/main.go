// Command e2e-test runs against a live lnd daemon (usually regtest in
// docker). It connects with the pinned certificate, checks the basic
// services, adds an invoice and waits to see it on the invoice stream.
// With -wrong-cert it also checks that a foreign certificate is rejected.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/verrpc"
	"github.com/markcallen/lnd-grpc/internal/pinning"
	"github.com/markcallen/lnd-grpc/pkg/lndclient"
)

var errFound = errors.New("found")

func main() {
	address := flag.String("address", "https://lnd:10009", "lnd address")
	tlsCert := flag.String("tlscert", "/lnd/tls.cert", "pinned certificate")
	mac := flag.String("macaroon", "/lnd/data/chain/bitcoin/regtest/admin.macaroon", "admin macaroon")
	wrongCert := flag.String("wrong-cert", "", "a certificate the daemon does not serve")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	os.Exit(run(*address, *tlsCert, *mac, *wrongCert, *timeout))
}

func run(address, tlsCert, mac, wrongCert string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := lndclient.Connect(ctx, address, lndclient.CertFile(tlsCert), lndclient.MacaroonFile(mac),
		lndclient.WithEagerConnect(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: connect: %v\n", err)
		return 1
	}
	defer client.Close()

	info, err := client.Lightning().GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: getinfo: %v\n", err)
		return 1
	}
	fmt.Printf("Connected to %s (%s)\n", info.Alias, info.IdentityPubkey)

	v, err := client.Versioner().GetVersion(ctx, &verrpc.VersionRequest{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: getversion: %v\n", err)
		return 1
	}
	fmt.Printf("Daemon version %s\n", v.Version)

	st, err := client.State().GetState(ctx, &lnrpc.GetStateRequest{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: getstate: %v\n", err)
		return 1
	}
	fmt.Printf("Wallet state %s\n", st.State)

	memo := "e2e-" + uuid.NewString()
	added, err := client.Lightning().AddInvoice(ctx, &lnrpc.Invoice{Memo: memo, Value: 1000})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: addinvoice: %v\n", err)
		return 1
	}

	// A fresh cursor replays every invoice, including the one just added.
	err = client.SubscribeInvoices("e2e", nil).RecvAll(ctx, func(inv *lnrpc.Invoice) error {
		if inv.Memo == memo && inv.AddIndex == added.AddIndex {
			return errFound
		}
		return nil
	})
	if !errors.Is(err, errFound) {
		fmt.Fprintf(os.Stderr, "ERROR: invoice %d not seen on stream: %v\n", added.AddIndex, err)
		return 1
	}
	fmt.Printf("Invoice %d seen on stream\n", added.AddIndex)

	if wrongCert != "" {
		_, err := lndclient.Connect(ctx, address, lndclient.CertFile(wrongCert), lndclient.MacaroonFile(mac),
			lndclient.WithEagerConnect(),
		)
		var mm *pinning.MismatchError
		if !errors.As(err, &mm) {
			fmt.Fprintf(os.Stderr, "ERROR: foreign certificate accepted or wrong error: %v\n", err)
			return 1
		}
		fmt.Printf("Foreign certificate rejected (%s)\n", mm.Kind)
	}

	fmt.Println("OK")
	return 0
}
