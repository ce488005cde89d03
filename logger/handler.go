// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
)

// newTextHandler writes logfmt lines for the plugin host. The host stamps
// its own time, and so does journald, so the time attribute is kept only when
// neither applies.
func newTextHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Level.lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch {
			case a.Key == slog.TimeKey && isJournal:
				return slog.Attr{}
			case a.Key == slog.LevelKey:
				return slog.String(a.Key, strings.ToLower(levelName(a.Value.Any().(slog.Level))))
			}
			return a
		},
	})
}

// newTerminalHandler is for interactive runs: colored, no time, source file
// only in debug mode.
func newTerminalHandler(w io.Writer) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		NoColor:   runtime.GOOS == "windows",
		AddSource: true,
		Level:     Level.lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case slog.SourceKey:
				if !Level.Enabled(slog.LevelDebug) {
					return slog.Attr{}
				}
			case slog.LevelKey:
				if lvl := a.Value.Any().(slog.Level); lvl == levelNotice {
					return slog.String(a.Key, "\u001B[34mNTC\u001B[0m")
				}
			}
			return a
		},
	})
}

// callerHandler fixes the record PC so the source attribute points at the
// caller of the Logger method rather than at this package.
type callerHandler struct {
	skip int
	next slog.Handler
}

func withCaller(skip int, h slog.Handler) slog.Handler {
	if ch, ok := h.(*callerHandler); ok {
		h = ch.next
	}
	return &callerHandler{skip: skip, next: h}
}

func (h *callerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *callerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return withCaller(h.skip, h.next.WithAttrs(attrs))
}

func (h *callerHandler) WithGroup(name string) slog.Handler {
	return withCaller(h.skip, h.next.WithGroup(name))
}

func (h *callerHandler) Handle(ctx context.Context, r slog.Record) error {
	var pcs [1]uintptr
	// +2: runtime.Callers and Handle itself
	runtime.Callers(h.skip+2, pcs[:])
	r.PC = pcs[0]
	return h.next.Handle(ctx, r)
}
