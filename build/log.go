// Package build wires up the shared logging backend for swapd: a single
// rotating log file plus stdout, handed out as one btclog.Logger per
// subsystem, mirroring lnd's own log-rotator-backed subsystem loggers.
package build

import (
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

const (
	defaultMaxLogFileSize = 10 // MB
	defaultMaxLogFiles    = 3
)

// LogWriter owns the rotating log file backing every subsystem logger
// handed out by SubLogger.
type LogWriter struct {
	backend *btclog.Backend
	rotator *rotator.Rotator
}

// NewLogWriter opens logFile for rotation and constructs the shared
// backend. An empty logFile logs to stdout only, used by tests and by
// --nofilelogging.
func NewLogWriter(logFile string) (*LogWriter, error) {
	if logFile == "" {
		return &LogWriter{backend: btclog.NewBackend(os.Stdout)}, nil
	}

	r, err := rotator.New(logFile, defaultMaxLogFileSize*1024, false, defaultMaxLogFiles)
	if err != nil {
		return nil, fmt.Errorf("build: failed to create log rotator: %w", err)
	}

	return &LogWriter{
		backend: btclog.NewBackend(io.MultiWriter(os.Stdout, r)),
		rotator: r,
	}, nil
}

// SubLogger returns a fresh Info-level logger tagged with subsystem.
func (w *LogWriter) SubLogger(subsystem string) btclog.Logger {
	l := w.backend.Logger(subsystem)
	l.SetLevel(btclog.LevelInfo)
	return l
}

// Close flushes and closes the underlying rotator, if one was opened.
func (w *LogWriter) Close() {
	if w.rotator != nil {
		w.rotator.Close()
	}
}

// SetLevel parses levelStr ("trace", "debug", "info", ...) and applies it
// to logger, returning an error for an unrecognized level string.
func SetLevel(logger btclog.Logger, levelStr string) error {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("build: unknown log level %q", levelStr)
	}
	logger.SetLevel(level)
	return nil
}
