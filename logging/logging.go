// Package logging builds the logrus loggers used across sealvault.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// New returns a logger at the given level. When file is non-empty the output
// is appended to it as JSON; otherwise text goes to stderr.
func New(level, file string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	log := logrus.New()
	log.SetLevel(lvl)

	if file == "" {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return log, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log, nil
}

// Discard returns a logger that drops everything. Components use it when no
// logger is configured.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns log, or Discard() when log is nil.
func OrDiscard(log *logrus.Logger) *logrus.Logger {
	if log == nil {
		return Discard()
	}
	return log
}
