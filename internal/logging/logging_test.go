package logging

import (
	"testing"

	"github.com/rs/zerolog"

	"livepulse/internal/config"
)

func TestNewParsesValidLevel(t *testing.T) {
	log := New(&config.Config{LogLevel: "debug", LogFormat: "json"})
	if log.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("GetLevel() = %v, want debug", log.GetLevel())
	}
}

func TestNewFallsBackToInfoOnInvalidLevel(t *testing.T) {
	log := New(&config.Config{LogLevel: "not-a-level", LogFormat: "json"})
	if log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("GetLevel() = %v, want info fallback", log.GetLevel())
	}
}

func TestNewConsoleFormatDoesNotPanic(t *testing.T) {
	log := New(&config.Config{LogLevel: "info", LogFormat: "console"})
	log.Info().Msg("smoke test")
}
