package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-widget/internal/config"
)

func init() {
	zerolog.TimestampFieldName = "timestamp"
}

// Default returns the logger used before the configuration has been read.
func Default() zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Caller().
		Int("pid", os.Getpid()).
		Logger()
}

// New builds the application logger for env. A non-empty level overrides the
// env's default level.
func New(env, level string) (zerolog.Logger, error) {
	return newWithOutput(os.Stdout, env, level)
}

func newWithOutput(out io.Writer, env, level string) (zerolog.Logger, error) {
	w := out
	var lvl zerolog.Level
	switch env {
	case config.EnvDev:
		lvl = zerolog.DebugLevel
	case config.EnvProd:
		lvl = zerolog.InfoLevel
	case config.EnvLocal:
		lvl = zerolog.TraceLevel

		consoleWriter := zerolog.NewConsoleWriter()
		consoleWriter.TimeFormat = time.DateTime
		consoleWriter.Out = out
		w = consoleWriter
	default:
		return zerolog.Nop(), fmt.Errorf("unknown env: %s", env)
	}

	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Int("pid", os.Getpid()).
		Logger(), nil
}
