// Package sprocketlog provides sprocket's indented, leveled CLI status output.
package sprocketlog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/reflow/ansi"
)

// IndentedWriter indents every line written through it by a fixed number of levels, passing ANSI
// escape sequences through untouched so colored output isn't mangled. Adapted from forklift's
// IndentedWriter (internal/clients/cli/printing.go), which in turn adapts
// github.com/muesli/reflow's indent.Writer.
type IndentedWriter struct {
	indent     int
	ansiWriter *ansi.Writer
	skipIndent bool
	inEscape   bool
}

func NewIndentedWriter(indent int, forward io.Writer) *IndentedWriter {
	return &IndentedWriter{
		indent:     indent,
		ansiWriter: &ansi.Writer{Forward: forward},
	}
}

func (w *IndentedWriter) Write(b []byte) (n int, err error) {
	for _, c := range string(b) {
		switch {
		case c == '\x1B':
			w.inEscape = true
		case w.inEscape:
			if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				w.inEscape = false
			}
		default:
			if !w.skipIndent {
				w.ansiWriter.ResetAnsi()
				if _, err := w.ansiWriter.Write([]byte(strings.Repeat("  ", w.indent))); err != nil {
					return 0, err
				}
				w.skipIndent = true
				w.ansiWriter.RestoreAnsi()
			}
			if c == '\n' || c == '\r' {
				w.skipIndent = false
			}
		}
		if _, err := w.ansiWriter.Write([]byte(string(c))); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// Logger prints status messages for sprocket's lock/source flows at a given indent depth,
// writing human-facing text to Out and diagnostics to Err.
type Logger struct {
	Out    io.Writer
	Err    io.Writer
	indent int
}

func New(out, err io.Writer) *Logger {
	return &Logger{Out: out, Err: err}
}

// Indented returns a copy of the logger writing one level deeper, for nesting a sub-operation's
// output (e.g. per-plugin acquisition progress) under a parent header.
func (l *Logger) Indented() *Logger {
	return &Logger{Out: l.Out, Err: l.Err, indent: l.indent + 1}
}

func (l *Logger) Header(format string, args ...any) {
	fmt.Fprint(NewIndentedWriter(l.indent, l.Out), fmt.Sprintf(format+"\n", args...))
}

func (l *Logger) Status(format string, args ...any) {
	fmt.Fprint(NewIndentedWriter(l.indent, l.Out), fmt.Sprintf(format+"\n", args...))
}

func (l *Logger) Error(format string, args ...any) {
	fmt.Fprint(NewIndentedWriter(l.indent, l.Err), fmt.Sprintf("Error: "+format+"\n", args...))
}

// Progress returns a writer suitable for passing to gitutil/http progress parameters, indented to
// match this logger's depth.
func (l *Logger) Progress() io.Writer {
	return NewIndentedWriter(l.indent, l.Out)
}

// Default is a logger writing to the process's standard streams.
func Default() *Logger {
	return New(os.Stdout, os.Stderr)
}
