// Package logging builds the process-wide zerolog logger. Every line is a
// single JSON object with a "ts" field rendered in the configured time zone.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New returns a JSON logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, level string, loc *time.Location) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if loc == nil {
		loc = time.UTC
	}

	return zerolog.New(w).
		Level(lvl).
		Hook(tsHook{loc: loc}).
		With().
		Logger()
}

// LoadLocation resolves a time zone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type tsHook struct {
	loc *time.Location
}

func (h tsHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Str(zerolog.TimestampFieldName, time.Now().In(h.loc).Format(zerolog.TimeFieldFormat))
}
