package options

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a text logger at level writing to w, or stderr when w is
// nil. Unknown levels fall back to warn.
func NewLogger(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
