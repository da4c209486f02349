// Command github-backup performs scheduled, policy-driven backup of
// GitHub repositories, gists, and release artifacts onto the local
// filesystem.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgevault/github-backup/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ExitCoder errors terminate inside Run with their own code; any
	// error that makes it back here is a usage problem.
	if err := cli.NewApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitConfig)
	}
}
