// Package log configures the process-wide zerolog logger from the
// LOG_LEVEL env var, used by both Controller and Agent processes.
package log

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure sets the global zerolog level and output writer. Pretty
// console output when stderr is a terminal, JSON lines otherwise
// (container log collection expects JSON).
func Configure(levelName string) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if isTerminal(os.Stderr) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// With returns a child logger carrying a fixed "component" field, the
// per-tick/per-request convention used throughout the Controller and
// Agent loops.
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
