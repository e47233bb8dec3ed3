// Package interp resolves ${...} placeholders in reason and instruction
// templates against a variable scope built from the current event.
package interp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/klauern/hookloop/internal/protocol"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Scope builds the template variable scope for an event. Only the fields
// meaningful for the event's kind are present.
func Scope(ev *protocol.Event) map[string]any {
	scope := map[string]any{
		"hook_event_name": string(ev.Kind),
		"session_id":      ev.SessionID,
		"transcript_path": ev.TranscriptPath,
		"cwd":             ev.CWD,
		"permission_mode": ev.PermissionMode,
	}
	switch ev.Kind {
	case protocol.PreToolUseEvent:
		scope["tool_name"] = ev.ToolName
		scope["tool_input"] = ev.ToolInput
	case protocol.PostToolUseEvent:
		scope["tool_name"] = ev.ToolName
		scope["tool_input"] = ev.ToolInput
		scope["tool_response"] = ev.ToolResponse
	case protocol.UserPromptSubmitEvent:
		scope["prompt"] = ev.Prompt
	case protocol.StopEvent, protocol.SubagentStopEvent:
		scope["stop_hook_active"] = ev.StopHookActive
	case protocol.PreCompactEvent:
		scope["trigger"] = ev.Trigger
		scope["custom_instructions"] = ev.CustomInstructions
	case protocol.SessionStartEvent:
		scope["source"] = ev.Source
	case protocol.SessionEndEvent:
		scope["reason"] = ev.Reason
	case protocol.NotificationEvent:
		scope["message"] = ev.Message
	}
	return scope
}

// Render substitutes ${...} placeholders in text. An unresolved placeholder
// is left verbatim; resolution problems come back as operator warnings and
// never fail the render.
func Render(text string, scope map[string]any) (string, []string) {
	var missing, ambiguous []string

	rendered := placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-1])
		value, found, amb := resolve(key, scope)
		if !found {
			missing = append(missing, key)
			return m
		}
		if amb {
			ambiguous = append(ambiguous, key)
		}
		return value
	})

	var warnings []string
	if len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("unresolved placeholders: %s", joinSorted(missing)))
	}
	if len(ambiguous) > 0 {
		warnings = append(warnings, fmt.Sprintf("ambiguous placeholders: %s", joinSorted(ambiguous)))
	}
	return rendered, warnings
}

// resolve looks a key up in the scope. Dotted keys walk nested maps. Bare
// keys are also searched inside tool_response and tool_input; a key present
// in more than one place resolves to the first hit in that order and is
// flagged ambiguous.
func resolve(key string, scope map[string]any) (string, bool, bool) {
	parts := splitPath(key)
	if len(parts) == 0 {
		return "", false, false
	}
	if len(parts) > 1 {
		v, ok := walk(scope, parts)
		if !ok {
			return "", false, false
		}
		return stringifyScalar(v), true, false
	}

	hits := 0
	var value any
	if v, ok := scope[key]; ok {
		hits++
		value = v
	}
	for _, nested := range []string{"tool_response", "tool_input"} {
		if m, ok := scope[nested].(map[string]any); ok {
			if v, ok := m[key]; ok {
				hits++
				if hits == 1 {
					value = v
				}
			}
		}
	}
	if hits == 0 {
		return "", false, false
	}
	return stringifyScalar(value), true, hits > 1
}

func splitPath(key string) []string {
	var parts []string
	for _, p := range strings.Split(key, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func walk(scope map[string]any, parts []string) (any, bool) {
	var current any = scope
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func stringifyScalar(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func joinSorted(keys []string) string {
	seen := map[string]bool{}
	var uniq []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ", ")
}

// Vars flattens an event into the string environment used by skip/only
// expressions.
func Vars(ev *protocol.Event) map[string]string {
	vars := map[string]string{
		"EVENT_NAME":       string(ev.Kind),
		"SESSION_ID":       ev.SessionID,
		"CWD":              ev.CWD,
		"PERMISSION_MODE":  ev.PermissionMode,
		"TOOL_NAME":        ev.ToolName,
		"PROMPT":           ev.Prompt,
		"SOURCE":           ev.Source,
		"TRIGGER":          ev.Trigger,
		"STOP_HOOK_ACTIVE": strconv.FormatBool(ev.StopHookActive),
	}
	if v, ok := ev.ToolInput["command"].(string); ok {
		vars["COMMAND"] = v
	}
	if v, ok := ev.ToolInput["file_path"].(string); ok {
		vars["FILE_PATH"] = v
	}
	return vars
}
