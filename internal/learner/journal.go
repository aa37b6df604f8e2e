package learner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/urwalabs/urwa/internal/types"
)

// entry is one observed fetch outcome.
type entry struct {
	Domain    string         `json:"domain"`
	Strategy  types.Strategy `json:"strategy"`
	Success   bool           `json:"success"`
	ElapsedMS int64          `json:"elapsed_ms"`
	At        time.Time      `json:"at"`
}

// summaryEntry is an aggregated stat written during compaction.
type summaryEntry struct {
	Domain   string             `json:"domain"`
	Strategy types.Strategy     `json:"strategy"`
	Stat     types.StrategyStat `json:"stat"`
}

// line is the on-disk record, tagged so replay can tell raw observations
// from compaction summaries.
type line struct {
	Kind    string        `json:"kind"` // "obs" | "sum"
	Obs     *entry        `json:"obs,omitempty"`
	Summary *summaryEntry `json:"sum,omitempty"`
}

// journal is an append-only JSONL file. Appends are serialized; rewrite
// swaps in a compacted file atomically via rename.
type journal struct {
	path string

	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func openJournal(path string) (*journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &journal{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (j *journal) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

func (j *journal) append(e entry) error {
	return j.writeLine(line{Kind: "obs", Obs: &e})
}

func (j *journal) writeLine(l line) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(data); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

// replay reads every parseable line from the journal. Malformed lines are
// skipped: a torn final line from a crash must not discard the rest.
func (j *journal) replay() ([]line, int, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open journal for replay: %w", err)
	}
	defer f.Close()

	var lines []line
	total := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		total++
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			continue
		}
		lines = append(lines, l)
	}
	if err := sc.Err(); err != nil {
		return lines, total, fmt.Errorf("scan journal: %w", err)
	}
	return lines, total, nil
}

// rewrite replaces the journal with one summary line per live stat. The
// new content lands in a temp file first so a crash mid-rewrite leaves the
// old journal intact.
func (j *journal) rewrite(summaries []summaryEntry) error {
	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create compaction temp: %w", err)
	}
	w := bufio.NewWriter(f)
	for i := range summaries {
		data, err := json.Marshal(line{Kind: "sum", Summary: &summaries[i]})
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.w.Flush()
	j.f.Close()
	if err := os.Rename(tmp, j.path); err != nil {
		os.Remove(tmp)
		// Reopen the old file so appends keep working.
		if f, rerr := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); rerr == nil {
			j.f = f
			j.w = bufio.NewWriter(f)
		}
		return fmt.Errorf("swap compacted journal: %w", err)
	}
	f2, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopen journal: %w", err)
	}
	j.f = f2
	j.w = bufio.NewWriter(f2)
	return nil
}
