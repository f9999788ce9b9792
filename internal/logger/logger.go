package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide diagnostic logger. It discards output until Init is called.
var Log = zerolog.New(io.Discard)

// Init opens the log file in append mode and routes all logging there.
func Init(logFilePath string) error {
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	Log = zerolog.New(file).With().Timestamp().Logger()
	log.Logger = Log
	Log.Info().Msg("Logger initialized.")
	return nil
}

// Component creates a child logger tagged with a component identifier.
func Component(name string) zerolog.Logger {
	return Log.With().Str("cmp", name).Logger()
}
