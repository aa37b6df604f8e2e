package logging

import (
	"log/slog"
	"strings"
	"sync"
)

const defaultRingSize = 2048

// Ring is a fixed-size buffer of recent log records. Writes are constant
// time; the oldest record is overwritten once the ring is full.
type Ring struct {
	mu   sync.Mutex
	buf  []Record
	next int
	full bool
}

// NewRing creates a ring holding up to size records.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Ring{buf: make([]Record, size)}
}

func (r *Ring) capture(rec slog.Record, bound []slog.Attr) {
	out := Record{TS: rec.Time, Level: rec.Level.String(), Msg: rec.Message}
	absorb := func(a slog.Attr) {
		switch a.Key {
		case "trace_id":
			out.TraceID = a.Value.String()
		case "component":
			out.Component = a.Value.String()
		default:
			if out.Fields == nil {
				out.Fields = make(map[string]any)
			}
			out.Fields[a.Key] = a.Value.Any()
		}
	}
	for _, a := range bound {
		absorb(a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		absorb(a)
		return true
	})

	r.mu.Lock()
	r.buf[r.next] = out
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Recent returns up to limit records, newest first, optionally filtered by
// level ("" matches all).
func (r *Ring) Recent(limit int, level string) []Record {
	if limit <= 0 {
		limit = 50
	}
	level = strings.ToUpper(level)

	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	out := make([]Record, 0, limit)
	for i := 0; i < size && len(out) < limit; i++ {
		idx := r.next - 1 - i
		if idx < 0 {
			idx += len(r.buf)
		}
		rec := r.buf[idx]
		if level != "" && rec.Level != level {
			continue
		}
		out = append(out, rec)
	}
	return out
}
