package lsm

import (
	"log"
	"os"
)

// Logger is the structured logging sink the engine writes operational
// events to. spec.md §1 lists the structured logging backend as an
// external collaborator; this interface is the seam — a caller wires in
// whatever backend it likes, and the engine never imports one directly.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// stdLogger adapts the standard library logger, matching the teacher's
// own log.Printf call sites (recovery, compaction, flush warnings).
type stdLogger struct {
	*log.Logger
}

// NewStdLogger returns a Logger backed by the standard library, writing
// to stderr with a "lsm: " prefix.
func NewStdLogger() Logger {
	return &stdLogger{log.New(os.Stderr, "lsm: ", log.LstdFlags)}
}

func (l *stdLogger) Debugf(format string, args ...any) { l.Printf("DEBUG "+format, args...) }
func (l *stdLogger) Infof(format string, args ...any)  { l.Printf("INFO "+format, args...) }
func (l *stdLogger) Warnf(format string, args ...any)  { l.Printf("WARN "+format, args...) }
func (l *stdLogger) Errorf(format string, args ...any) { l.Printf("ERROR "+format, args...) }

// noopLogger discards everything; used when a caller explicitly wants
// silence (e.g. benchmark harnesses).
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}
