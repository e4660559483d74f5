// Package logger configures the process-wide slog handler and carries
// request-scoped attributes through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type attrsKey struct{}

// Setup installs the default logger writing to stdout.
func Setup(level string, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter installs the default logger on w. Format "json" selects the
// JSON handler; anything else is logfmt-style text.
func SetupWriter(w io.Writer, level string, format string) {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// ParseLevel accepts debug, info, warn or error in any case and falls back
// to info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func with(ctx context.Context, attr slog.Attr) context.Context {
	prev, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	next := make([]slog.Attr, 0, len(prev)+1)
	next = append(next, prev...)
	return context.WithValue(ctx, attrsKey{}, append(next, attr))
}

// WithRunID tags every log line derived from ctx with the comparison run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return with(ctx, slog.String("run_id", runID))
}

// WithRequestID tags every log line derived from ctx with the HTTP request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, slog.String("request_id", requestID))
}

// FromContext returns the default logger enriched with the attributes
// stored in ctx.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	for _, a := range attrs {
		l = l.With(a)
	}
	return l
}

// WithComponent returns the default logger tagged with component.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
