// Package rtlog wires the runtime's ambient logging on top of
// log/slog. Grounded on the teacher's pkg/logger/logger.go: a single
// process-wide logger built from a parsed level and an output writer,
// set as both a package-level default and slog's own default so every
// component can just call slog.Info/Debug/Warn/Error.
//
// Standard-library logging only — the teacher itself never reaches
// for a third-party logging library for this concern (see
// DESIGN.md), so there is nothing in the pack's dependency surface to
// adopt here.
package rtlog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// ParseLevel converts a level name to slog.Level. Unrecognised names
// fall back to Info, matching the teacher's permissive parser.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init builds the process-wide logger at level, writing to output, and
// installs it as slog's default. Call once at startup; GetLogger
// lazily calls this with Info/stderr if nothing has.
func Init(level slog.Level, output io.Writer) *slog.Logger {
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// GetLogger returns the process logger, initialising a default
// (Info/stderr) one on first use.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		return Init(slog.LevelInfo, os.Stderr)
	}
	return defaultLogger
}

// ForTurn returns a logger annotated with a conversation/turn pair, so
// a single turn's lines can be grepped out of a busy process log.
func ForTurn(conversationID, turnID string) *slog.Logger {
	return GetLogger().With("conversationId", conversationID, "turnId", turnID)
}
