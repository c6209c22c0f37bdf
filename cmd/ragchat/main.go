// Command ragchat ingests documents into a vector index and answers
// questions about them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/cli"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli.SetVersion(version)
	cli.SetLoader(load)

	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
