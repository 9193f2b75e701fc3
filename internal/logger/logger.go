// Package logger provides leveled logging on top of the standard log package.
// Debug and info lines are only written in verbose mode; warnings and errors
// are always written. A nil *Logger discards everything.
package logger

import (
	"io"
	"log"
	"sync/atomic"
)

// Logger writes prefixed, leveled lines to an underlying *log.Logger.
type Logger struct {
	out     *log.Logger
	verbose *atomic.Bool
	prefix  string
}

// New creates a logger writing to w.
func New(w io.Writer, verbose bool) *Logger {
	v := &atomic.Bool{}
	v.Store(verbose)
	return &Logger{
		out:     log.New(w, "", log.LstdFlags),
		verbose: v,
	}
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger { return New(io.Discard, false) }

// With returns a child logger that tags every line with prefix.
// The child shares output and verbosity with its parent.
func (l *Logger) With(prefix string) *Logger {
	if l == nil {
		return nil
	}
	p := prefix
	if l.prefix != "" {
		p = l.prefix + " " + prefix
	}
	return &Logger{out: l.out, verbose: l.verbose, prefix: p}
}

// SetVerbose toggles debug and info output.
func (l *Logger) SetVerbose(v bool) {
	if l != nil {
		l.verbose.Store(v)
	}
}

// IsVerbose reports whether debug output is enabled.
func (l *Logger) IsVerbose() bool { return l != nil && l.verbose.Load() }

// Debugf logs a debug line in verbose mode.
func (l *Logger) Debugf(format string, args ...any) {
	if l.IsVerbose() {
		l.printf("DEBUG", format, args...)
	}
}

// Infof logs an informational line in verbose mode.
func (l *Logger) Infof(format string, args ...any) {
	if l.IsVerbose() {
		l.printf("INFO", format, args...)
	}
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...any) {
	if l != nil {
		l.printf("WARN", format, args...)
	}
}

// Errorf logs an error.
func (l *Logger) Errorf(format string, args ...any) {
	if l != nil {
		l.printf("ERROR", format, args...)
	}
}

func (l *Logger) printf(level, format string, args ...any) {
	head := "[" + level + "] "
	if l.prefix != "" {
		head += l.prefix + " "
	}
	l.out.Printf(head+format, args...)
}
