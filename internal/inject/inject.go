// Package inject implements the instruction injection engine for
// SessionStart, UserPromptSubmit, PostToolUse, and PreCompact events.
// Unlike the policy engine, every matching rule contributes, in declaration
// order, and failures are advisory: a broken rule loses its contribution
// but never aborts the hook.
package inject

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauern/hookloop/internal/config"
	"github.com/klauern/hookloop/internal/interp"
	"github.com/klauern/hookloop/internal/match"
	"github.com/klauern/hookloop/internal/project"
	"github.com/klauern/hookloop/internal/protocol"
)

// injectableEvents are the kinds the engine responds to. Rules with an
// empty events list apply to all of them.
var injectableEvents = []protocol.EventKind{
	protocol.SessionStartEvent,
	protocol.UserPromptSubmitEvent,
	protocol.PostToolUseEvent,
	protocol.PreCompactEvent,
}

// Render evaluates every rule against the event and concatenates the
// resolved content of those that fire. The returned warnings are operator
// diagnostics for stderr; content may be empty when nothing matched.
func Render(cfg config.InjectConfig, root string, ev *protocol.Event) (string, []string) {
	subject := match.Subject{
		Tool:    ev.ToolName,
		Input:   ev.ToolInput,
		Output:  ev.ToolResponse,
		Prompt:  ev.Prompt,
		Subtype: ev.Subtype(),
	}
	vars := interp.Vars(ev)
	scope := interp.Scope(ev)
	promptsDir := resolvePromptsDir(cfg.PromptsDir, root)

	var blocks []string
	var warnings []string
	for i, rule := range cfg.Rules {
		name := ruleName(rule.Name, i)
		if !eventApplies(rule.Events, ev.Kind) {
			continue
		}
		if !match.When(rule.When, ev.Subtype()) {
			continue
		}
		ok, err := match.Applicable(rule.Skip, rule.Only, vars)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("inject rule %s: %v", name, err))
			continue
		}
		if !ok || !rule.Match.Matches(subject) {
			continue
		}

		for _, file := range rule.Include {
			text, err := readInclude(filepath.Join(promptsDir, file))
			if err != nil {
				// Missing or unreadable content loses only this file's
				// contribution.
				warnings = append(warnings, fmt.Sprintf("inject rule %s: %v", name, err))
				continue
			}
			rendered, warns := interp.Render(text, scope)
			blocks = append(blocks, rendered)
			warnings = append(warnings, prefix(name, warns)...)
		}
		for _, text := range rule.Text {
			rendered, warns := interp.Render(text, scope)
			blocks = append(blocks, rendered)
			warnings = append(warnings, prefix(name, warns)...)
		}
	}

	return strings.Join(blocks, "\n\n"), warnings
}

func eventApplies(events []string, kind protocol.EventKind) bool {
	if len(events) == 0 {
		for _, k := range injectableEvents {
			if k == kind {
				return true
			}
		}
		return false
	}
	for _, e := range events {
		if e == string(kind) {
			return true
		}
	}
	return false
}

func resolvePromptsDir(dir, root string) string {
	if dir == "" {
		dir = filepath.Join(project.StateDir(root), "prompts")
	}
	if strings.HasPrefix(dir, "~"+string(os.PathSeparator)) || dir == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir
}

func readInclude(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("include %s: %w", filepath.Base(path), err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("include %s: empty file", filepath.Base(path))
	}
	return text, nil
}

func ruleName(name string, i int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("#%d", i)
}

func prefix(name string, warns []string) []string {
	out := make([]string, 0, len(warns))
	for _, w := range warns {
		out = append(out, fmt.Sprintf("inject rule %s: %s", name, w))
	}
	return out
}
