// Package session stores handoff artifacts when a session ends: a markdown
// tail of the final conversation turns and the agent's last todo list,
// written under the project state directory so a later session (or a
// context packet) can pick up where this one stopped.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauern/hookloop/internal/config"
	"github.com/klauern/hookloop/internal/protocol"
)

// artifactsDir is the subdirectory of the state directory holding stored
// session artifacts.
const artifactsDir = "sessions"

// maxTranscriptLine bounds a single transcript line; assistant turns with
// large embedded tool results can run long.
const maxTranscriptLine = 4 * 1024 * 1024

// transcript JSONL records: one object per line with a type discriminator
// and, for conversation turns, a nested message carrying content blocks.
// Tool invocations appear as tool_use blocks inside assistant turns.
type transcriptRecord struct {
	Type    string `json:"type"`
	Message struct {
		Role string `json:"role"`
		// Content is either a plain string (user prompts) or a list of
		// typed blocks (assistant turns), so it decodes lazily.
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// turn is one conversation turn flattened to its text.
type turn struct {
	Role string
	Text string
}

// StoreArtifacts persists the configured artifacts for a SessionEnd event.
// Storage is best-effort: every failure is reported as a warning and none
// affects the hook response. Events of other kinds and sessions with no
// readable transcript are a no-op.
func StoreArtifacts(cfg config.SessionConfig, stateDir string, ev *protocol.Event) []string {
	if ev.Kind != protocol.SessionEndEvent || ev.TranscriptPath == "" {
		return nil
	}
	storeTail := cfg.TailPrompts > 0 && reasonMatches(cfg.TailWhen, ev.Reason)
	storeTodos := reasonMatches(cfg.TodoWhen, ev.Reason)
	if !storeTail && !storeTodos {
		return nil
	}

	turns, todos, err := readTranscript(ev.TranscriptPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []string{fmt.Sprintf("session artifacts: %v", err)}
	}

	dir := filepath.Join(stateDir, artifactsDir)
	id := safeSessionID(ev.SessionID)
	var warnings []string
	if storeTail {
		if tail := renderTail(turns, cfg.TailPrompts); tail != "" {
			path := filepath.Join(dir, id+"_tail.md")
			if err := writeArtifact(path, tail); err != nil {
				warnings = append(warnings, fmt.Sprintf("session artifacts: %v", err))
			}
		}
	}
	if storeTodos && todos != "" {
		path := filepath.Join(dir, id+"_todo.md")
		if err := writeArtifact(path, todos); err != nil {
			warnings = append(warnings, fmt.Sprintf("session artifacts: %v", err))
		}
	}
	return warnings
}

func reasonMatches(reasons []string, reason string) bool {
	for _, r := range reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func safeSessionID(id string) string {
	if id == "" {
		return "session"
	}
	return strings.ReplaceAll(id, string(os.PathSeparator), "_")
}

// readTranscript walks the transcript once, collecting conversation turns
// and the most recent TodoWrite todo list. Unparseable lines are skipped:
// the log may be appended to concurrently and the final line can be
// partial.
func readTranscript(path string) (turns []turn, todos string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxTranscriptLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec transcriptRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		role := rec.Message.Role
		if role == "" && (rec.Type == "user" || rec.Type == "assistant") {
			role = rec.Type
		}
		if role == "" {
			continue
		}
		text, latest := flattenContent(rec.Message.Content)
		if latest != "" {
			todos = latest
		}
		if text != "" {
			turns = append(turns, turn{Role: role, Text: text})
		}
	}
	return turns, todos, scanner.Err()
}

// flattenContent reduces a message content value to its visible text and
// reports any TodoWrite todo list found among its tool_use blocks.
func flattenContent(raw json.RawMessage) (text, todos string) {
	if len(raw) == 0 {
		return "", ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, ""
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", ""
	}
	var parts []string
	for _, block := range blocks {
		switch {
		case block.Type == "text" && block.Text != "":
			parts = append(parts, block.Text)
		case block.Type == "tool_use" && block.Name == "TodoWrite":
			if t := renderTodos(block.Input["todos"]); t != "" {
				todos = t
			}
		}
	}
	return strings.Join(parts, "\n"), todos
}

// renderTail formats the conversation from the Nth-to-last user prompt
// onward as a markdown document. An empty string means there is nothing
// worth storing.
func renderTail(turns []turn, tailPrompts int) string {
	var userIndices []int
	for i, tn := range turns {
		if tn.Role == "user" {
			userIndices = append(userIndices, i)
		}
	}
	if len(userIndices) == 0 {
		return ""
	}
	start := userIndices[0]
	if len(userIndices) >= tailPrompts {
		start = userIndices[len(userIndices)-tailPrompts]
	}

	var b strings.Builder
	b.WriteString("# Session Tail\n")
	for _, tn := range turns[start:] {
		b.WriteString("\n## ")
		b.WriteString(tn.Role)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(tn.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// renderTodos formats a TodoWrite todos value as a markdown checklist.
// A plain string passes through; a list of todo objects renders one line
// per item with its status box.
func renderTodos(v any) string {
	switch todos := v.(type) {
	case string:
		todos = strings.TrimSpace(todos)
		if todos == "" {
			return ""
		}
		return todos + "\n"
	case []any:
		var b strings.Builder
		for _, item := range todos {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			content, _ := m["content"].(string)
			if content == "" {
				continue
			}
			status, _ := m["status"].(string)
			box := " "
			switch status {
			case "completed":
				box = "x"
			case "in_progress":
				box = "-"
			}
			fmt.Fprintf(&b, "- [%s] %s\n", box, content)
		}
		return b.String()
	default:
		return ""
	}
}

// writeArtifact replaces path contents via a sibling temp file and rename.
func writeArtifact(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
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
