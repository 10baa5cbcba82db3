package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/pri/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:])
	stop()

	if err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
