package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerline/ledgerline/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
