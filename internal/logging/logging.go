// Package logging builds the component loggers used across the service.
// Output goes to stderr unless a log file is configured, in which case it
// is rotated by size through lumberjack.
package logging

import (
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/config"
)

// Factory hands out prefixed loggers that share one output.
type Factory struct {
	out    io.Writer
	closer io.Closer

	mu      sync.Mutex
	loggers map[string]*log.Logger
}

// NewFactory creates a Factory for cfg. A zero LogConfig logs to stderr.
func NewFactory(cfg config.LogConfig) *Factory {
	f := &Factory{out: os.Stderr, loggers: make(map[string]*log.Logger)}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		f.out = rotator
		f.closer = rotator
	}
	return f
}

// NewWriterFactory creates a Factory that writes to w. Used by tests.
func NewWriterFactory(w io.Writer) *Factory {
	return &Factory{out: w, loggers: make(map[string]*log.Logger)}
}

// New returns the logger for component, e.g. "sync" logs as "[sync] ...".
// Repeated calls for the same component return the same logger.
func (f *Factory) New(component string) *log.Logger {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.loggers[component]; ok {
		return l
	}
	l := log.New(f.out, "["+component+"] ", log.LstdFlags)
	f.loggers[component] = l
	return l
}

// Writer is the shared output.
func (f *Factory) Writer() io.Writer {
	return f.out
}

// Close flushes and closes the log file, if any.
func (f *Factory) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
