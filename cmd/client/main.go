package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/dreamjournal/internal/client/cli"
	"github.com/iudanet/dreamjournal/internal/client/iocli"
	"github.com/iudanet/dreamjournal/internal/client/journal"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(iocli.NewStdio(), os.Stderr, Version)
	root.SetVersionTemplate(fmt.Sprintf("Dream Journal Client\nVersion:    %s\nBuild Date: %s\nGit Commit: %s\n",
		Version, BuildDate, GitCommit))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", journal.Message(err))
		stop()
		os.Exit(1)
	}
}
