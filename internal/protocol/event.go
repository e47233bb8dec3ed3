// Package protocol implements the stdin/stdout JSON protocol between the
// agent host and a single hook invocation: one event in, one structured
// response plus exit code out.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// EventKind identifies a host lifecycle event.
type EventKind string

// All lifecycle events delivered by the host.
const (
	PreToolUseEvent       EventKind = "PreToolUse"
	PostToolUseEvent      EventKind = "PostToolUse"
	UserPromptSubmitEvent EventKind = "UserPromptSubmit"
	NotificationEvent     EventKind = "Notification"
	StopEvent             EventKind = "Stop"
	SubagentStopEvent     EventKind = "SubagentStop"
	PreCompactEvent       EventKind = "PreCompact"
	SessionStartEvent     EventKind = "SessionStart"
	SessionEndEvent       EventKind = "SessionEnd"
)

// KnownEventKinds returns every event kind this binary handles, in protocol
// declaration order.
func KnownEventKinds() []EventKind {
	return []EventKind{
		PreToolUseEvent,
		PostToolUseEvent,
		UserPromptSubmitEvent,
		NotificationEvent,
		StopEvent,
		SubagentStopEvent,
		PreCompactEvent,
		SessionStartEvent,
		SessionEndEvent,
	}
}

// IsKnownEventKind reports whether name is a recognized discriminator value.
func IsKnownEventKind(name string) bool {
	for _, k := range KnownEventKinds() {
		if string(k) == name {
			return true
		}
	}
	return false
}

// Event is one parsed host notification. The Kind discriminator selects
// which of the per-kind fields are meaningful; everything else is zero.
// Events are ephemeral and never persisted.
type Event struct {
	Kind           EventKind
	SessionID      string
	TranscriptPath string
	CWD            string
	PermissionMode string

	// PreToolUse / PostToolUse
	ToolName     string
	ToolInput    map[string]any
	ToolResponse map[string]any

	// UserPromptSubmit
	Prompt string

	// Stop / SubagentStop
	StopHookActive bool

	// PreCompact
	Trigger            string
	CustomInstructions string

	// SessionStart
	Source string

	// SessionEnd
	Reason string

	// Notification
	Message string
}

// wireEvent mirrors the host's JSON field names.
type wireEvent struct {
	HookEventName      string          `json:"hook_event_name"`
	SessionID          string          `json:"session_id"`
	TranscriptPath     string          `json:"transcript_path"`
	CWD                string          `json:"cwd"`
	PermissionMode     string          `json:"permission_mode"`
	ToolName           string          `json:"tool_name"`
	ToolInput          json.RawMessage `json:"tool_input"`
	ToolResponse       json.RawMessage `json:"tool_response"`
	Prompt             string          `json:"prompt"`
	StopHookActive     bool            `json:"stop_hook_active"`
	Trigger            string          `json:"trigger"`
	CustomInstructions string          `json:"custom_instructions"`
	Source             string          `json:"source"`
	Reason             string          `json:"reason"`
	Message            string          `json:"message"`
}

// Decode reads exactly one JSON event object from r and returns the typed
// event. A malformed document, a missing or unknown discriminator, or absent
// required fields yield an *InputError.
func Decode(r io.Reader) (*Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &InputError{Err: err}
	}
	if len(data) == 0 {
		return nil, &InputError{Err: fmt.Errorf("no input received on stdin")}
	}

	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &InputError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if wire.HookEventName == "" {
		return nil, &InputError{Err: fmt.Errorf("missing hook_event_name")}
	}
	if !IsKnownEventKind(wire.HookEventName) {
		return nil, &InputError{Err: fmt.Errorf("unknown hook event %q", wire.HookEventName)}
	}

	ev := &Event{
		Kind:           EventKind(wire.HookEventName),
		SessionID:      wire.SessionID,
		TranscriptPath: wire.TranscriptPath,
		CWD:            wire.CWD,
		PermissionMode: wire.PermissionMode,
	}

	switch ev.Kind {
	case PreToolUseEvent, PostToolUseEvent:
		if wire.ToolName == "" {
			return nil, &InputError{Kind: ev.Kind, Err: fmt.Errorf("%s: missing tool_name", ev.Kind)}
		}
		ev.ToolName = wire.ToolName
		ev.ToolInput, err = decodeObject(wire.ToolInput)
		if err != nil {
			return nil, &InputError{Kind: ev.Kind, Err: fmt.Errorf("%s: bad tool_input: %w", ev.Kind, err)}
		}
		if ev.Kind == PostToolUseEvent {
			ev.ToolResponse, err = decodeObject(wire.ToolResponse)
			if err != nil {
				return nil, &InputError{Kind: ev.Kind, Err: fmt.Errorf("PostToolUse: bad tool_response: %w", err)}
			}
		}
	case UserPromptSubmitEvent:
		ev.Prompt = wire.Prompt
	case StopEvent, SubagentStopEvent:
		ev.StopHookActive = wire.StopHookActive
	case PreCompactEvent:
		ev.Trigger = wire.Trigger
		if ev.Trigger == "" {
			ev.Trigger = "manual"
		}
		ev.CustomInstructions = wire.CustomInstructions
	case SessionStartEvent:
		ev.Source = wire.Source
		if ev.Source == "" {
			ev.Source = "startup"
		}
	case SessionEndEvent:
		ev.Reason = wire.Reason
	case NotificationEvent:
		ev.Message = wire.Message
	}

	return ev, nil
}

// decodeObject unwraps a JSON value into a string-keyed map. Tool payloads
// are occasionally delivered as JSON-encoded strings; those are decoded one
// level before giving up.
func decodeObject(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return m, nil
		}
		// Non-object payload, keep it addressable under a fixed key.
		return map[string]any{"text": s}, nil
	}
	return nil, fmt.Errorf("expected object, got %s", truncate(string(raw), 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Subtype returns the per-kind trigger discriminator used by injection
// rules: the SessionStart source, the PreCompact trigger, or "".
func (e *Event) Subtype() string {
	switch e.Kind {
	case SessionStartEvent:
		return e.Source
	case PreCompactEvent:
		return e.Trigger
	case SessionEndEvent:
		return e.Reason
	default:
		return ""
	}
}
