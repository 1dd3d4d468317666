package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kilometers-ai/plugin-updater/internal/interfaces/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli.Execute(ctx)
}
