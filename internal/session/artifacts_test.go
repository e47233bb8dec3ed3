package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/hookloop/internal/config"
	"github.com/klauern/hookloop/internal/protocol"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func sessionEndEvent(transcript, reason string) *protocol.Event {
	return &protocol.Event{
		Kind:           protocol.SessionEndEvent,
		SessionID:      "sess-1",
		TranscriptPath: transcript,
		Reason:         reason,
	}
}

const todoTurn = `{"type":"assistant","message":{"role":"assistant","content":[` +
	`{"type":"text","text":"Starting on the parser."},` +
	`{"type":"tool_use","name":"TodoWrite","input":{"todos":[` +
	`{"content":"fix the lexer","status":"completed"},` +
	`{"content":"port the parser","status":"in_progress"},` +
	`{"content":"add benchmarks","status":"pending"}]}}]}}`

func TestStoreArtifacts_TailAndTodos(t *testing.T) {
	transcript := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"look at the lexer"}}`,
		todoTurn,
		`not json at all`,
		`{"type":"user","message":{"role":"user","content":"now port the parser"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Parser ported."}]}}`,
	)
	stateDir := t.TempDir()
	cfg := config.Default().Session
	cfg.TailPrompts = 1

	warnings := StoreArtifacts(cfg, stateDir, sessionEndEvent(transcript, "prompt_input_exit"))
	assert.Empty(t, warnings)

	tail, err := os.ReadFile(filepath.Join(stateDir, "sessions", "sess-1_tail.md"))
	require.NoError(t, err)
	assert.Contains(t, string(tail), "# Session Tail")
	assert.Contains(t, string(tail), "## user\nnow port the parser")
	assert.Contains(t, string(tail), "## assistant\nParser ported.")
	assert.NotContains(t, string(tail), "look at the lexer", "tail of one prompt must not reach back further")

	todo, err := os.ReadFile(filepath.Join(stateDir, "sessions", "sess-1_todo.md"))
	require.NoError(t, err)
	assert.Equal(t, "- [x] fix the lexer\n- [-] port the parser\n- [ ] add benchmarks\n", string(todo))
}

func TestStoreArtifacts_TailSpansPrompts(t *testing.T) {
	transcript := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"first ask"}}`,
		`{"type":"user","message":{"role":"user","content":"second ask"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"done"}]}}`,
	)
	stateDir := t.TempDir()
	cfg := config.Default().Session
	cfg.TailPrompts = 2

	warnings := StoreArtifacts(cfg, stateDir, sessionEndEvent(transcript, "other"))
	assert.Empty(t, warnings)

	tail, err := os.ReadFile(filepath.Join(stateDir, "sessions", "sess-1_tail.md"))
	require.NoError(t, err)
	assert.Contains(t, string(tail), "first ask")
	assert.Contains(t, string(tail), "second ask")
}

func TestStoreArtifacts_ReasonGate(t *testing.T) {
	transcript := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"ask"}}`,
		todoTurn,
	)
	stateDir := t.TempDir()
	cfg := config.Default().Session
	cfg.TailPrompts = 1

	// "clear" keeps todos by default but never the tail.
	warnings := StoreArtifacts(cfg, stateDir, sessionEndEvent(transcript, "clear"))
	assert.Empty(t, warnings)

	_, err := os.Stat(filepath.Join(stateDir, "sessions", "sess-1_tail.md"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(stateDir, "sessions", "sess-1_todo.md"))
	assert.NoError(t, err)

	// An unconfigured reason stores nothing at all.
	warnings = StoreArtifacts(cfg, stateDir, sessionEndEvent(transcript, "logout"))
	assert.Empty(t, warnings)
	entries, err := os.ReadDir(filepath.Join(stateDir, "sessions"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreArtifacts_TailDisabledByZero(t *testing.T) {
	transcript := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"ask"}}`,
	)
	stateDir := t.TempDir()

	warnings := StoreArtifacts(config.Default().Session, stateDir, sessionEndEvent(transcript, "prompt_input_exit"))
	assert.Empty(t, warnings)
	_, err := os.Stat(filepath.Join(stateDir, "sessions", "sess-1_tail.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreArtifacts_MissingTranscript(t *testing.T) {
	stateDir := t.TempDir()
	cfg := config.Default().Session
	cfg.TailPrompts = 1

	warnings := StoreArtifacts(cfg, stateDir, sessionEndEvent(filepath.Join(t.TempDir(), "gone.jsonl"), "other"))
	assert.Empty(t, warnings)
	_, err := os.Stat(filepath.Join(stateDir, "sessions"))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreArtifacts_OtherEventKind(t *testing.T) {
	stateDir := t.TempDir()
	ev := &protocol.Event{Kind: protocol.StopEvent, TranscriptPath: "/anything"}
	assert.Empty(t, StoreArtifacts(config.Default().Session, stateDir, ev))
}

func TestRenderTodos(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string passthrough", "  - do the thing  ", "- do the thing\n"},
		{"empty string", "   ", ""},
		{"nil", nil, ""},
		{
			"object list",
			[]any{
				map[string]any{"content": "a", "status": "completed"},
				map[string]any{"content": "b", "status": "pending"},
				map[string]any{"status": "pending"},
			},
			"- [x] a\n- [ ] b\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderTodos(tt.in))
		})
	}
}
