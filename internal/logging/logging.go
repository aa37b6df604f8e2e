// Package logging builds the process logger: newline-delimited JSON records
// with a trace_id pulled from context, mirrored into a bounded ring so the
// telemetry surface can serve recent records without a log shipper.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urwalabs/urwa/internal/trace"
)

// Record is one captured log line, as served by RecentLogs.
type Record struct {
	TS        time.Time      `json:"ts"`
	Level     string         `json:"level"`
	TraceID   string         `json:"trace_id,omitempty"`
	Component string         `json:"component,omitempty"`
	Msg       string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New builds a slog.Logger writing JSON to w (stderr when nil) and the Ring
// that captures every record it emits.
func New(level string, w io.Writer) (*slog.Logger, *Ring) {
	if w == nil {
		w = os.Stderr
	}
	ring := NewRing(defaultRingSize)
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(&handler{inner: base, ring: ring}), ring
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// handler decorates a JSON handler with trace_id injection and ring capture.
type handler struct {
	inner slog.Handler
	ring  *Ring
	attrs []slog.Attr
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, rec slog.Record) error {
	if id := trace.FromContext(ctx); id != "" {
		rec.AddAttrs(slog.String("trace_id", id))
	}
	h.ring.capture(rec, h.attrs)
	return h.inner.Handle(ctx, rec)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &handler{inner: h.inner.WithAttrs(attrs), ring: h.ring, attrs: merged}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{inner: h.inner.WithGroup(name), ring: h.ring, attrs: h.attrs}
}
