// Package sigctx provides a context that is canceled by SIGINT or SIGTERM,
// so that long-running commands shut down cleanly under ctrl-c and under a
// process manager's stop signal.
package sigctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func New() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
