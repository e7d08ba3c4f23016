package diag

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	boldStart = "\033[1m"
	boldEnd   = "\033[0;0m"
)

// Logger is the engine's two-channel diagnostic sink: user-facing
// error:/warning:/plain lines (colored when attached to a terminal) and
// an internal structured debug stream built on zerolog for resolved
// tool paths, resolved library paths, platform/SDK decisions, and
// per-command elapsed time.
type Logger struct {
	out   io.Writer
	isTTY bool
	debug zerolog.Logger
}

// NewLogger builds a Logger writing to os.Stdout (colorized when it's a
// terminal) and routes debug-level output through zerolog at Debug
// level when verbose is set, Warn level when verifyMode is set, else
// Info.
func NewLogger(verbose, verifyMode bool) *Logger {
	out := colorable.NewColorableStdout()
	l := &Logger{
		out:   out,
		isTTY: isatty.IsTerminal(os.Stdout.Fd()),
	}
	level := zerolog.InfoLevel
	switch {
	case verbose:
		level = zerolog.DebugLevel
	case verifyMode:
		level = zerolog.WarnLevel
	}
	l.debug = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l
}

// Error prints a bold "error:" line.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("error:", fmt.Sprintf(format, args...))
}

// Warning prints a bold "warning:" line.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.emit("warning:", fmt.Sprintf(format, args...))
}

// Info prints a plain line with no prefix.
func (l *Logger) Info(format string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s\n", fmt.Sprintf(format, args...))
}

func (l *Logger) emit(prefix, msg string) {
	if l.isTTY {
		fmt.Fprintf(l.out, "%s%s%s %s\n", boldStart, prefix, boldEnd, msg)
	} else {
		fmt.Fprintf(l.out, "%s %s\n", prefix, msg)
	}
}

// Debugf records a structured debug line: resolved tool paths, resolved
// library paths, platform/SDK decisions.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.debug.Debug().Msg(fmt.Sprintf(format, args...))
}

// CommandTiming records the elapsed wall time of a subprocess
// invocation.
func (l *Logger) CommandTiming(argv []string, elapsed time.Duration) {
	l.debug.Debug().
		Strs("argv", argv).
		Dur("elapsed", elapsed).
		Msg("command finished")
}
