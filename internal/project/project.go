// Package project locates the project root that anchors all persisted hook
// state. Resolution walks ancestor directories for the state marker and is
// a pure function of the filesystem; init is the only mutating operation.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

const (
	// StateDirName is the per-project state directory.
	StateDirName = ".hookloop"
	// MarkerName is the root marker record inside the state directory.
	MarkerName = "project.toml"
)

// Marker is the root marker record.
type Marker struct {
	ID        string    `toml:"id"`
	CreatedAt time.Time `toml:"created_at"`
}

// Resolve walks from start upward and returns the first ancestor containing
// the state marker. Fallback chain: nearest ancestor with a .git directory,
// else start itself. HOOKLOOP_ROOT short-circuits the walk.
func Resolve(start string) (string, error) {
	if root := os.Getenv("HOOKLOOP_ROOT"); root != "" {
		return filepath.Abs(root)
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	gitRoot := ""
	dir := abs
	for {
		if fileExists(filepath.Join(dir, StateDirName, MarkerName)) {
			return dir, nil
		}
		if gitRoot == "" && dirExists(filepath.Join(dir, ".git")) {
			gitRoot = dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if gitRoot != "" {
		return gitRoot, nil
	}
	return abs, nil
}

// StateDir returns the state directory under a resolved root.
func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

// Init creates the state directory and marker under dir, making it a
// project root. Re-initializing an existing root is an error; the marker
// record (and its id) is immutable once created.
func Init(dir string) (*Marker, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	markerPath := filepath.Join(abs, StateDirName, MarkerName)
	if fileExists(markerPath) {
		return nil, fmt.Errorf("already a project root: %s", abs)
	}
	if err := os.MkdirAll(filepath.Dir(markerPath), 0o755); err != nil {
		return nil, err
	}

	marker := &Marker{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	f, err := os.OpenFile(markerPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	if err := toml.NewEncoder(f).Encode(marker); err != nil {
		return nil, err
	}
	return marker, nil
}

// ReadMarker loads the marker record at a resolved root, or nil when the
// root came from a fallback and carries no marker.
func ReadMarker(root string) (*Marker, error) {
	data, err := os.ReadFile(filepath.Join(root, StateDirName, MarkerName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var marker Marker
	if err := toml.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("corrupt project marker: %w", err)
	}
	return &marker, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
