// DSL-Link - a Telnet server hosting a shared message board.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dsllink/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dsllink: %v\n", err)
		os.Exit(1)
	}
}
