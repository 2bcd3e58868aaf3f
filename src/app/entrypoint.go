package app

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

type Entrypoint interface {
	io.Closer
	Init(ctx context.Context) error
	Run(ctx context.Context) error
}

// Run initializes e, runs it until it returns or the process is
// interrupted, and closes it in both cases.
func Run(ctx context.Context, e Entrypoint) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := e.Init(ctx); err != nil {
		return errors.Wrap(err, "entrypoint init")
	}

	eg, egCtx := errgroup.WithContext(ctx)

	done := make(chan struct{})
	eg.Go(func() error {
		defer close(done)
		return e.Run(egCtx)
	})

	eg.Go(func() error {
		select {
		case <-egCtx.Done():
		case <-done:
		}
		return e.Close()
	})

	return eg.Wait()
}
