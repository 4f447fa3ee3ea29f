// Package logging wires the process-wide structured logger.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"livepulse/internal/config"
)

// New builds a zerolog.Logger configured per cfg.LogLevel/cfg.LogFormat.
// "console" produces human-readable output for local development; anything
// else produces newline-delimited JSON suitable for log shipping.
func New(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out zerolog.ConsoleWriter
	writer := os.Stdout
	if strings.EqualFold(cfg.LogFormat, "console") {
		out = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
		return zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
