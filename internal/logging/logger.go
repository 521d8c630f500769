package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
//
// GUARDIAN_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// GEMINI_LOG_LEVEL is honoured when GUARDIAN_LOG_LEVEL is unset.
// GUARDIAN_LOG_FORMAT selects "console" (default) or "json" output.
func Init() {
	InitWithWriter(os.Stderr)
}

// InitWithWriter is Init with an explicit destination. The MCP server uses it
// to keep stdout free for protocol traffic.
func InitWithWriter(w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(levelFromEnv()))

	if strings.EqualFold(os.Getenv("GUARDIAN_LOG_FORMAT"), "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func levelFromEnv() string {
	if v := os.Getenv("GUARDIAN_LOG_LEVEL"); v != "" {
		return v
	}
	return os.Getenv("GEMINI_LOG_LEVEL")
}
