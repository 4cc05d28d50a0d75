// Package logging provides the process-wide logger factory.
//
// All components log through hclog. The level is taken from the
// GARCUN_LOG_LEVEL environment variable (debug, info, warn, error; default
// info), so library consumers control verbosity without touching code.
package logging

import (
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// New returns a named logger writing to stderr at the configured level.
func New(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  levelFromEnv(),
		Output: os.Stderr,
	})
}

// Discard returns a logger that drops everything. Used as the default in
// tests and wherever a component is constructed without an explicit logger.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}

func levelFromEnv() hclog.Level {
	switch strings.ToLower(os.Getenv("GARCUN_LOG_LEVEL")) {
	case "debug":
		return hclog.Debug
	case "warn", "warning":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		return hclog.Info
	}
}
