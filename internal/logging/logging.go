// Package logging sets up the process-wide zerolog console logger.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a console logger at the given level. Unknown level strings
// fall back to info.
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.ErrorFieldName = "err"

	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	return zerolog.New(cw).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a config string to a zerolog level.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
