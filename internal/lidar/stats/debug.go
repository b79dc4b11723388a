package stats

import (
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters sets the stats package's ops, diag and trace writers. A nil
// writer silences its stream; all three start silent.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[stats] ", ops)
	diagLogger = newLogger("[stats] ", diag)
	traceLogger = newLogger("[stats] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf reports interval loss summaries.
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf reports the per-interval throughput line.
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef reports interval resets.
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
