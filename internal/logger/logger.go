package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger: human readable console output in
// development, JSON with timestamp and caller everywhere else.
func New(serviceName, env, level string) zerolog.Logger {
	return NewWithWriter(os.Stdout, serviceName, env, level)
}

func NewWithWriter(w io.Writer, serviceName, env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if env == "development" {
		l = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	} else {
		l = zerolog.New(w).With().Timestamp().Caller().Logger()
	}

	return l.Level(lvl).With().Str("service", serviceName).Logger()
}
