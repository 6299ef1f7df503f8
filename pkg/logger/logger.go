package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global zerolog logger with JSON output to
// stdout and a service field on every line. Unknown level strings fall
// back to info.
func InitLogger(logLevel string) {
	log.Logger = log.Output(os.Stdout).With().Timestamp().Str("service", "orion-ai").Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msgf("Logger initialized with level: %s", zerolog.GlobalLevel().String())
}
