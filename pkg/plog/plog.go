package plog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log levels understood by the package. LevelNotice sits between the standard
// slog Debug and Info levels and is used for per-file operational output
// (one line per copied executable) that would be too chatty at Info.
const (
	LevelDebug  = slog.LevelDebug
	LevelNotice = slog.Level(-2)
	LevelInfo   = slog.LevelInfo
	LevelWarn   = slog.LevelWarn
	LevelError  = slog.LevelError
)

// levelNames maps the custom levels to their display names so that
// NOTICE does not render as "INFO+2".
var levelNames = map[slog.Leveler]string{
	LevelNotice: "NOTICE",
}

// LevelDispatchHandler is a slog.Handler that writes log records to different
// handlers based on the record's level. INFO and NOTICE go to one handler,
// while WARNING and above go to another.
type LevelDispatchHandler struct {
	stdoutHandler slog.Handler
	stderrHandler slog.Handler
}

// Enabled checks if the level is enabled for either of the underlying handlers.
func (h *LevelDispatchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdoutHandler.Enabled(ctx, level) || h.stderrHandler.Enabled(ctx, level)
}

// Handle dispatches the record to the appropriate handler.
func (h *LevelDispatchHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderrHandler.Handle(ctx, r)
	}
	return h.stdoutHandler.Handle(ctx, r)
}

// WithAttrs returns a new LevelDispatchHandler with the given attributes added.
func (h *LevelDispatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithAttrs(attrs),
		stderrHandler: h.stderrHandler.WithAttrs(attrs),
	}
}

// WithGroup returns a new LevelDispatchHandler with the given group.
func (h *LevelDispatchHandler) WithGroup(name string) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithGroup(name),
		stderrHandler: h.stderrHandler.WithGroup(name),
	}
}

var defaultLogger *slog.Logger

// levelVar holds the minimum level for the global logger. It is shared by
// all handlers so a single SetLevel call affects both output streams.
var levelVar = new(slog.LevelVar)

// handlerOptions returns the slog options shared by all handlers, including
// the ReplaceAttr hook that renders the custom NOTICE level by name.
func handlerOptions(minLevel slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: minLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				if name, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(name)
				}
			}
			return a
		},
	}
}

func init() {
	levelVar.Set(LevelInfo)

	// Info and Notice level logs go to stdout.
	stdoutHandler := slog.NewTextHandler(os.Stdout, handlerOptions(levelVar))

	// Warning and error level logs go to stderr. The dispatch handler routes
	// by level, so this handler's own floor only needs to not exceed it.
	stderrHandler := slog.NewTextHandler(os.Stderr, handlerOptions(levelVar))

	defaultLogger = slog.New(&LevelDispatchHandler{
		stdoutHandler: stdoutHandler,
		stderrHandler: stderrHandler,
	})
}

// SetOutput redirects the logger's output to a single writer, primarily for
// testing. All levels are written to the provided writer.
func SetOutput(w io.Writer) {
	defaultLogger = slog.New(slog.NewTextHandler(w, handlerOptions(levelVar)))
}

// SetLevel sets the minimum level for the global logger.
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// LevelFromString converts a level name from config or flags into a slog
// level. Unknown names fall back to Info.
func LevelFromString(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "notice":
		return LevelNotice
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	defaultLogger.Log(context.Background(), LevelDebug, msg, args...)
}

// Notice logs a per-operation message (one line per processed file).
func Notice(msg string, args ...any) {
	defaultLogger.Log(context.Background(), LevelNotice, msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	defaultLogger.Log(context.Background(), LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	defaultLogger.Log(context.Background(), LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	defaultLogger.Log(context.Background(), LevelError, msg, args...)
}
