// control/trace.go
// Author: momentics <momentics@gmail.com>
//
// Lifecycle trace logging for the fiber runtime.

package control

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewTraceLogger returns the default trace logger: human-readable console
// output on stderr at debug level.
func NewTraceLogger() zerolog.Logger {
	return NewTraceLoggerTo(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMicro})
}

// NewTraceLoggerTo builds a trace logger writing to w.
func NewTraceLoggerTo(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
