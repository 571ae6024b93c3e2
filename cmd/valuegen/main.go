// Command valuegen derives base values for every item of a recipe dump that
// has no hand-assigned value, and keeps a history of generated runs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "valuegen: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	return 0
}
