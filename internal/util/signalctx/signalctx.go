package signalctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals возвращает context, который отменяется при получении INT или TERM.
// The received signal is delivered on sigCh after cancellation so callers can
// report it. cancel also stops signal delivery.
func WithSignals(parent context.Context) (ctx context.Context, cancel context.CancelFunc, sigCh <-chan os.Signal) {
	ctx, cancelCtx := context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	out := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	cancel = func() {
		signal.Stop(c)
		cancelCtx()
	}

	go func() {
		select {
		case <-parent.Done():
			cancelCtx()
		case <-ctx.Done():
			// already canceled
		case s := <-c:
			out <- s
			cancelCtx()
		}
	}()

	return ctx, cancel, out
}
