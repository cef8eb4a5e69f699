package main

import (
	"io"
	"log/slog"
)

// NewLogger returns the process-wide structured logger. Output is one JSON
// object per line so capture sessions can be traced with standard log
// tooling; level comes from the config's debug flag.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
