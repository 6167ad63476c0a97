// Package main is the entry point for wirectl.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"firestige.xyz/wire/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		// cobra has already printed the error.
		stop()
		os.Exit(1)
	}
}
