package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog builds the zerolog logger used by the database and influx
// managers: colored console output plus an uncolored copy to file.
func NewZerolog(file io.Writer, level string) zerolog.Logger {
	var lvl zerolog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = zerolog.DebugLevel
	case "WARN":
		lvl = zerolog.WarnLevel
	case "ERROR":
		lvl = zerolog.ErrorLevel
	case "TRACE":
		lvl = zerolog.TraceLevel
	default:
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339},
	}
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: file, TimeFormat: time.RFC3339, NoColor: true})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Str("service", ServiceName).Logger()
}
