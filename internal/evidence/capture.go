// Package evidence persists diagnostic artifacts for failed fetches:
// response metadata, headers, a body excerpt, and a screenshot when a
// browser strategy produced one. Records are keyed by trace ID.
package evidence

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

// Record is the persisted metadata for one capture.
type Record struct {
	TraceID    string            `json:"trace_id"`
	URL        string            `json:"url"`
	Strategy   types.Strategy    `json:"strategy"`
	Kind       types.FailureKind `json:"failure_kind"`
	HTTPStatus int               `json:"http_status,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
	HasBody    bool              `json:"has_body"`
	HasShot    bool              `json:"has_screenshot"`
}

// Capture is the input to one capture call.
type Capture struct {
	TraceID    string
	URL        string
	Strategy   types.Strategy
	Kind       types.FailureKind
	HTTPStatus int
	Headers    http.Header
	Body       []byte
	Screenshot []byte
}

// Capturer writes evidence records under a directory per trace ID and
// enforces a rolling retention cap. Every method is best-effort: failures
// are logged and swallowed so evidence problems never fail a scrape.
type Capturer struct {
	cfg    config.EvidenceConfig
	logger *slog.Logger
	clock  func() time.Time

	mu sync.Mutex
}

// NewCapturer creates the evidence directory if needed.
func NewCapturer(cfg config.EvidenceConfig, logger *slog.Logger) *Capturer {
	c := &Capturer{
		cfg:    cfg,
		logger: logger.With("component", "evidence"),
		clock:  time.Now,
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		c.logger.Warn("evidence dir unavailable", "dir", cfg.Dir, "error", err)
	}
	return c
}

// ShouldCapture reports whether the failure kind warrants evidence.
func ShouldCapture(kind types.FailureKind) bool {
	switch kind {
	case types.FailChallenge, types.FailBlocked, types.FailRateLimit:
		return true
	}
	return false
}

// Store writes one evidence record and returns its handle (the trace ID).
// An empty handle means nothing was persisted.
func (c *Capturer) Store(in Capture) string {
	if in.TraceID == "" {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Join(c.cfg.Dir, in.TraceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn("evidence capture failed", "trace_id", in.TraceID, "error", err)
		return ""
	}

	rec := Record{
		TraceID:    in.TraceID,
		URL:        in.URL,
		Strategy:   in.Strategy,
		Kind:       in.Kind,
		HTTPStatus: in.HTTPStatus,
		CapturedAt: c.clock(),
		HasBody:    len(in.Body) > 0,
		HasShot:    len(in.Screenshot) > 0,
	}

	if len(in.Body) > 0 {
		body := in.Body
		if c.cfg.BodyExcerptMax > 0 && len(body) > c.cfg.BodyExcerptMax {
			body = body[:c.cfg.BodyExcerptMax]
		}
		c.writeFile(filepath.Join(dir, "body.bin"), body)
	}
	if len(in.Screenshot) > 0 {
		c.writeFile(filepath.Join(dir, "screenshot.png"), in.Screenshot)
	}
	if in.Headers != nil {
		if data, err := json.MarshalIndent(in.Headers, "", "  "); err == nil {
			c.writeFile(filepath.Join(dir, "headers.json"), data)
		}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return ""
	}
	c.writeFile(filepath.Join(dir, "meta.json"), data)

	c.evictLocked()
	return in.TraceID
}

func (c *Capturer) writeFile(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.logger.Warn("evidence write failed", "path", path, "error", err)
	}
}

// evictLocked removes the oldest records past the retention cap.
func (c *Capturer) evictLocked() {
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil || len(entries) <= c.cfg.RetentionCount {
		return
	}

	type aged struct {
		name string
		mod  time.Time
	}
	dirs := make([]aged, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, aged{name: e.Name(), mod: info.ModTime()})
	}
	if len(dirs) <= c.cfg.RetentionCount {
		return
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mod.Before(dirs[j].mod) })
	for _, d := range dirs[:len(dirs)-c.cfg.RetentionCount] {
		if err := os.RemoveAll(filepath.Join(c.cfg.Dir, d.name)); err != nil {
			c.logger.Warn("evidence eviction failed", "record", d.name, "error", err)
		}
	}
}

// Recent returns up to limit records, newest first.
func (c *Capturer) Recent(limit int) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return nil
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.cfg.Dir, e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CapturedAt.After(records[j].CapturedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
