package parse

import (
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters sets the parse package's ops, diag and trace writers. A nil
// writer silences its stream; all three start silent.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[parse] ", ops)
	diagLogger = newLogger("[parse] ", diag)
	traceLogger = newLogger("[parse] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf reports rejected datagrams.
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf reports the drop suppression notice.
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef reports the first decoded packets of a stream.
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
