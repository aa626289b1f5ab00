package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiCyan   = "\x1b[36m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

// logger writes [keysof]-prefixed diagnostics. Info messages are shown only
// in verbose mode; warnings always are.
type logger struct {
	w       io.Writer
	verbose bool
	color   bool
}

func newLogger(w io.Writer, verbose bool) *logger {
	return &logger{w: w, verbose: verbose, color: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *logger) prefix(color string) string {
	if !l.color {
		return "[keysof] "
	}
	return color + "[keysof]" + ansiReset + " "
}

// Infof logs in verbose mode only.
func (l *logger) Infof(format string, args ...any) {
	if !l.verbose {
		return
	}
	fmt.Fprintf(l.w, l.prefix(ansiCyan)+format+"\n", args...)
}

// Warnf always logs.
func (l *logger) Warnf(format string, args ...any) {
	fmt.Fprintf(l.w, l.prefix(ansiYellow)+"warning: "+format+"\n", args...)
}
