package cmd

import (
	"fmt"
	"os"

	"github.com/klauern/hookloop/internal/config"
	"github.com/klauern/hookloop/internal/project"
)

// projectContext is the resolved environment shared by every command:
// project root, state directory, and loaded configuration.
type projectContext struct {
	Root     string
	StateDir string
	Config   *config.Config
}

// loadProject resolves the project root from start (or the working
// directory when start is empty) and loads the rule-set document. A
// non-empty configPath bypasses discovery entirely.
func loadProject(start, configPath string) (*projectContext, error) {
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		start = cwd
	}
	root, err := project.Resolve(start)
	if err != nil {
		return nil, err
	}
	stateDir := project.StateDir(root)
	if configPath == "" {
		configPath = config.Discover(stateDir)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return &projectContext{Root: root, StateDir: stateDir, Config: cfg}, nil
}
