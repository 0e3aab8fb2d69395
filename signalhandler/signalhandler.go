package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"imagedupes/logging"
)

// SetupHandler returns a context that is cancelled on the first SIGINT/SIGTERM.
// A second signal exits immediately.
func SetupHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logging.LogWarning("Received %v, stopping after the current row (send again to quit now)", sig)
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
			return
		}

		<-sigChan
		os.Exit(130)
	}()

	return ctx, cancel
}

// GetOptimalProcs returns the optimal number of worker goroutines for the system
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	// For image processing with CGo, using too many goroutines can cause issues
	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}

	return maxProcs
}
