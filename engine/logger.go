package engine

import (
	"io"
	"log/slog"
	"strings"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/scope"
)

// NewLogger builds the process logger described by cfg, writing to w.
// Records logged with a job context carry its tenant and flow.
func NewLogger(cfg flowsync.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(scope.NewHandler(h))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
