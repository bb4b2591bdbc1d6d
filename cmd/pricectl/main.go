package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"priceresolver/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return cli.NewRootCmd(version).ExecuteContext(ctx)
}

// exitCode is 1 when prices were missing and 2 for any other failure.
func exitCode(err error) int {
	var missing *cli.MissingPricesError
	if errors.As(err, &missing) {
		return 1
	}
	return 2
}
