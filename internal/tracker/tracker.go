// Package tracker maintains the append-only relevant-file log and the
// handoff packets snapshotted from it. The log is multi-writer safe:
// appends are single O_APPEND writes, records are never rewritten, and
// readers tolerate a concurrently appended (possibly partial) tail.
package tracker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Provenance records how a path entered the log.
type Provenance string

const (
	ProvenanceTool Provenance = "tool" // observed from a tool invocation
	ProvenanceUser Provenance = "user" // explicitly confirmed by the user
)

// Default confidences per provenance.
const (
	ConfidenceObserved  = 0.5
	ConfidenceConfirmed = 1.0
)

// Record is one observation. Records are append-only; corrections are new
// records, never edits.
type Record struct {
	TS         time.Time  `json:"ts"`
	Path       string     `json:"path"`
	Provenance Provenance `json:"provenance"`
	PacketID   string     `json:"packet_id,omitempty"`
	Confidence float64    `json:"confidence"`
}

// Log is the append-only relevant-file log.
type Log struct {
	path string
}

const logName = "relevant_files.jsonl"

// NewLog returns the log for a project state directory.
func NewLog(stateDir string) *Log {
	return &Log{path: filepath.Join(stateDir, logName)}
}

// Append commits one record with a single O_APPEND write, so records from
// concurrent invocations interleave without loss.
func (l *Log) Append(rec Record) error {
	if rec.Path == "" {
		return fmt.Errorf("relevant-file record needs a path")
	}
	if rec.Provenance != ProvenanceTool && rec.Provenance != ProvenanceUser {
		return fmt.Errorf("unknown provenance %q", rec.Provenance)
	}
	if rec.TS.IsZero() {
		rec.TS = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.Write(append(data, '\n'))
	return err
}

// Records reads the whole log in append order. Unparseable lines are
// skipped (a concurrent writer may still be mid-append on the last line).
func (l *Log) Records() ([]Record, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Snapshot reduces the full log to the current file sets without mutating
// it: dedupe by path keeping the most recent record, then split by
// provenance into confirmed (user) and suggested (tool) sets.
func (l *Log) Snapshot() (confirmed, suggested []string, err error) {
	records, err := l.Records()
	if err != nil {
		return nil, nil, err
	}
	latest := make(map[string]Record, len(records))
	for _, rec := range records {
		prev, seen := latest[rec.Path]
		if !seen || !rec.TS.Before(prev.TS) {
			latest[rec.Path] = rec
		}
	}
	for path, rec := range latest {
		if rec.Provenance == ProvenanceUser {
			confirmed = append(confirmed, path)
		} else {
			suggested = append(suggested, path)
		}
	}
	sort.Strings(confirmed)
	sort.Strings(suggested)
	return confirmed, suggested, nil
}

// pathKeys are the tool input fields that carry file paths, in priority
// order.
var pathKeys = []string{"file_path", "notebook_path", "path"}

// ObservedPaths extracts file paths from a tool invocation for
// tool-provenance tracking. Non-file tools yield nothing.
func ObservedPaths(toolInput map[string]any) []string {
	var paths []string
	for _, key := range pathKeys {
		if v, ok := toolInput[key].(string); ok && v != "" {
			paths = append(paths, v)
		}
	}
	if edits, ok := toolInput["edits"].([]any); ok {
		for _, e := range edits {
			if m, ok := e.(map[string]any); ok {
				if v, ok := m["file_path"].(string); ok && v != "" {
					paths = append(paths, v)
				}
			}
		}
	}
	return dedupe(paths)
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
