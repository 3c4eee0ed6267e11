package util

import (
	"context"
	"os"
	"os/signal"

	"github.com/airbloc/logger"
)

var log = logger.New("lrbatch.util")

// ContextWithSignal returns a context canceled when one of given signals is received.
// A job running on the context stops before its next step or chunk.
func ContextWithSignal(parent context.Context, sig ...os.Signal) (context.Context, context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, sig...)

	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case s := <-sigChan:
			log.Info("{} received. Stopping after the current chunk.", s.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
