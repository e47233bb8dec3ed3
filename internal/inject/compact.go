package inject

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauern/hookloop/internal/config"
	"github.com/klauern/hookloop/internal/project"
	"github.com/klauern/hookloop/internal/protocol"
)

// defaultCompactFile is the fallback compact instructions document inside
// the project state directory.
const defaultCompactFile = "compact.md"

// CompactContext resolves the instruction payload for a PreCompact event.
// Manual compaction with explicit custom instructions echoes them; without,
// the default instructions file applies when present. When compact.block_auto
// is set, an auto trigger yields a halting result (continue:false).
func CompactContext(cfg config.CompactConfig, root string, ev *protocol.Event) *protocol.Result {
	if ev.Trigger == "auto" && cfg.BlockAuto {
		return protocol.Halt("Auto compaction blocked by hook. Run /compact manually when ready.")
	}

	var content string
	switch {
	case ev.Trigger == "manual" && ev.CustomInstructions != "":
		content = fmt.Sprintf("Manual compact with user instructions:\n%s", ev.CustomInstructions)
	default:
		defaults := loadCompactDefaults(cfg, root)
		if defaults == "" {
			return protocol.OK()
		}
		if ev.Trigger == "manual" {
			content = fmt.Sprintf("Manual compact with default instructions:\n%s", defaults)
		} else {
			content = fmt.Sprintf("Auto-compact triggered (context window full). Default instructions:\n%s", defaults)
		}
	}
	return protocol.AdditionalContext(protocol.PreCompactEvent, content)
}

func loadCompactDefaults(cfg config.CompactConfig, root string) string {
	path := cfg.InstructionsFile
	if path == "" {
		path = filepath.Join(project.StateDir(root), defaultCompactFile)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(StripFrontMatter(string(data)))
}

// StripFrontMatter removes a leading YAML front matter block delimited by
// "---" lines, returning the document body.
func StripFrontMatter(s string) string {
	if !strings.HasPrefix(s, "---") {
		return s
	}
	parts := strings.SplitN(s, "---", 3)
	if len(parts) < 3 {
		return s
	}
	return strings.TrimSpace(parts[2])
}
