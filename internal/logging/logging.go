// ABOUTME: Builds the process logger from level and format settings
// ABOUTME: Console output is human readable, json output is one event per line
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Format values accepted by New
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a zerolog logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if strings.ToLower(format) != FormatJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: true}
	}

	return zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("app", "attune").
		Logger()
}
