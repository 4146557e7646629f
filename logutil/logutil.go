// logutil.go - slog-Logger fuer executorch
//
// - NewLogger: Text-Handler mit TRACE-Level und kurzen Quellangaben (paket/datei.go)
// - ParseLevel: Wert von EXECUTORCH_DEBUG -> slog.Level
// - Trace/TraceContext: Logging auf TRACE fuer heisse Pfade (Lowering pro Knoten)
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const LevelTrace slog.Level = -8

// ParseLevel liest EXECUTORCH_DEBUG. Akzeptiert werden Bool-Werte
// (true = DEBUG), Zahlen (1 = DEBUG, 2 = TRACE) und Level-Namen.
// Unbekannte Werte ergeben INFO.
func ParseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "info":
		return slog.LevelInfo
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil && i > 0 {
		return slog.Level(i * -4)
	}

	return slog.LevelInfo
}

// shortSource kuerzt /pfad/zu/server/routes_serve.go auf server/routes_serve.go
func shortSource(file string) string {
	return filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file))
}

func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				source := attr.Value.Any().(*slog.Source)
				source.File = shortSource(source.File)
			}
			return attr
		},
	}))
}

type key string

func Trace(msg string, args ...any) {
	TraceContext(context.WithValue(context.TODO(), key("skip"), 1), msg, args...)
}

func TraceContext(ctx context.Context, msg string, args ...any) {
	logger := slog.Default()
	if !logger.Enabled(ctx, LevelTrace) {
		return
	}

	skip, _ := ctx.Value(key("skip")).(int)
	pc, _, _, _ := runtime.Caller(1 + skip)
	record := slog.NewRecord(time.Now(), LevelTrace, msg, pc)
	record.Add(args...)
	_ = logger.Handler().Handle(ctx, record)
}
