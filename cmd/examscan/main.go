// Command examscan turns model readings of scanned exam papers into
// structured documents.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// An interrupt cancels in-flight model calls and stops the inbox watcher
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := exitCode(rootCmd.ExecuteContext(ctx))
	stop()
	os.Exit(code)
}

// exitCode is 2 when a response could not be extracted and 1 for any other
// error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errExtractionFailed):
		return 2
	default:
		return 1
	}
}
