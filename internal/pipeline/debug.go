package pipeline

import (
	"io"
	"log"
	"sync/atomic"
)

var (
	opsLogger   atomic.Pointer[log.Logger]
	diagLogger  atomic.Pointer[log.Logger]
	traceLogger atomic.Pointer[log.Logger]
)

// SetLogWriters configures the three logging streams for the pipeline package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger.Store(newLogger("[Pipeline] ", ops))
	diagLogger.Store(newLogger("[Pipeline] ", diag))
	traceLogger.Store(newLogger("[Pipeline] ", trace))
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (drops, source failures, brake events).
func opsf(format string, args ...interface{}) {
	if l := opsLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}

// diagf logs to the diag stream (run settings, periodic stats).
func diagf(format string, args ...interface{}) {
	if l := diagLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}

// tracef logs to the trace stream (one line per decision cycle).
func tracef(format string, args ...interface{}) {
	if l := traceLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}
