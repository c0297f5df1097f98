// Package main is the proximityalarm command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/proximity/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		//nolint:gocritic
		os.Exit(1)
	}
}
