// Command lndcli talks to an lnd node using a pinned certificate and a
// macaroon, and carries a few helpers for local test daemons.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(app.ErrWriter, "error:", err)
		stop()
		os.Exit(1)
	}
}
