// Command todoctl manages your todos from the terminal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tomlord1122/todo-widget/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Stdout, os.Stderr, os.Args, cli.Environ())
	stop()
	os.Exit(code)
}
