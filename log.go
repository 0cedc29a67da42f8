package isocarto

import (
	"log"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose enables debug logging for the scanner, cache and dispatcher.
func SetVerbose(v bool) {
	verbose.Store(v)
}

func debugf(format string, args ...any) {
	if verbose.Load() {
		log.Printf(format, args...)
	}
}
