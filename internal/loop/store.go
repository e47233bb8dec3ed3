package loop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store persists loop records and the foreground pointer under the project
// state directory. Single-record writes go through write-temp-then-rename
// so concurrent hook invocations never observe partial state.
type Store struct {
	dir string
}

// StateError marks an unreadable persisted record. Callers recover by
// treating the record as absent; it is never fatal.
type StateError struct {
	Path string
	Err  error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("corrupt state record %s: %v", e.Path, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

type pointer struct {
	ActiveLoopID string `json:"active_loop_id,omitempty"`
}

// NewStore returns a store rooted at the project state directory.
func NewStore(stateDir string) *Store {
	return &Store{dir: stateDir}
}

func (s *Store) loopsDir() string {
	return filepath.Join(s.dir, "loops")
}

func (s *Store) loopPath(id string) string {
	return filepath.Join(s.loopsDir(), id+".json")
}

func (s *Store) pointerPath() string {
	return filepath.Join(s.dir, "active.json")
}

// Save atomically replaces a loop record.
func (s *Store) Save(l *Loop) error {
	if err := os.MkdirAll(s.loopsDir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.loopPath(l.ID), data)
}

// Load reads one loop record. A missing record returns os.ErrNotExist; an
// unreadable one returns *StateError.
func (s *Store) Load(id string) (*Loop, error) {
	path := s.loopPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Loop
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, &StateError{Path: path, Err: err}
	}
	if l.ID == "" || l.Status == "" {
		return nil, &StateError{Path: path, Err: fmt.Errorf("missing id or status")}
	}
	return &l, nil
}

// Find matches a loop by full id or unique id prefix.
func (s *Store) Find(idOrPrefix string) (*Loop, error) {
	if l, err := s.Load(idOrPrefix); err == nil {
		return l, nil
	}
	loops, _, err := s.List()
	if err != nil {
		return nil, err
	}
	var found *Loop
	for _, l := range loops {
		if strings.HasPrefix(l.ID, idOrPrefix) {
			if found != nil {
				return nil, fmt.Errorf("loop id prefix %q is ambiguous", idOrPrefix)
			}
			found = l
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no loop matching %q", idOrPrefix)
	}
	return found, nil
}

// List returns every readable loop record ordered by creation time, newest
// first, plus warnings for records it had to skip.
func (s *Store) List() ([]*Loop, []string, error) {
	entries, err := os.ReadDir(s.loopsDir())
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var loops []*Loop
	var warnings []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		l, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		loops = append(loops, l)
	}
	sort.Slice(loops, func(i, j int) bool {
		return loops[i].CreatedAt.After(loops[j].CreatedAt)
	})
	return loops, warnings, nil
}

// Active resolves the foreground loop. The pointer may name a record that
// is gone or no longer active; both count as "no foreground loop" and the
// caller gets a warning rather than an error.
func (s *Store) Active() (*Loop, []string) {
	data, err := os.ReadFile(s.pointerPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, []string{fmt.Sprintf("read foreground pointer: %v", err)}
	}
	var p pointer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, []string{fmt.Sprintf("corrupt foreground pointer, ignoring: %v", err)}
	}
	if p.ActiveLoopID == "" {
		return nil, nil
	}
	l, err := s.Load(p.ActiveLoopID)
	if err != nil {
		return nil, []string{fmt.Sprintf("foreground loop %s unreadable, ignoring: %v", p.ActiveLoopID, err)}
	}
	return l, nil
}

// SetActive atomically points the foreground at one loop. There is exactly
// one pointer value at any time.
func (s *Store) SetActive(id string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(pointer{ActiveLoopID: id})
	if err != nil {
		return err
	}
	return atomicWrite(s.pointerPath(), data)
}

// ClearActive atomically unsets the foreground pointer.
func (s *Store) ClearActive() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(pointer{})
	if err != nil {
		return err
	}
	return atomicWrite(s.pointerPath(), data)
}

// Start persists a new loop and makes it the foreground loop.
func (s *Store) Start(directive, promise string, maxIterations int, fuzzy bool, packetID string) (*Loop, error) {
	l, err := New(directive, promise, maxIterations, fuzzy, packetID)
	if err != nil {
		return nil, err
	}
	if err := s.Save(l); err != nil {
		return nil, err
	}
	if err := s.SetActive(l.ID); err != nil {
		return nil, err
	}
	return l, nil
}

// atomicWrite replaces path contents via a sibling temp file and rename.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
