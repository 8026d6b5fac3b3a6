package utils

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger builds the application logger. The level can be overridden with
// the BARGE_LOG_LEVEL environment variable (debug, info, warn, error).
func NewLogger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
	})

	if lvl := strings.TrimSpace(os.Getenv("BARGE_LOG_LEVEL")); lvl != "" {
		if parsed, err := log.ParseLevel(lvl); err == nil {
			logger.SetLevel(parsed)
		}
	}

	return logger
}

// NopLogger returns a logger that discards all output. Collaborators accept
// it when the caller does not care about logs (most tests).
func NopLogger() *log.Logger {
	return log.New(io.Discard)
}
