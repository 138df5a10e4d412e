package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger: JSON lines in production, a console
// writer elsewhere. An empty or unknown level falls back to info in
// production and debug otherwise.
func New(environment, level string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if environment != "production" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(parseLevel(environment, level))

	return zerolog.New(out).With().
		Timestamp().
		Str("service", "natours").
		Str("env", environment).
		Logger()
}

func parseLevel(environment, level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		return lvl
	}
	if environment == "production" {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}
