// Package loop implements the persisted loop state machine driven by Stop
// events: a directive is re-delivered every turn until the agent emits the
// loop's completion marker or the iteration budget runs out. There is no
// resident process; all state lives in per-loop records plus a single
// foreground pointer under the project state directory.
package loop

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a loop lifecycle state. done and cancelled are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// Loop is one persisted loop record.
type Loop struct {
	ID        string `json:"id"`
	Status    Status `json:"status"`
	Iteration int    `json:"iteration"`
	// MaxIterations caps blocked continuations; 0 means unbounded, which
	// terminates only by promise match or cancel.
	MaxIterations  int       `json:"max_iterations"`
	Promise        string    `json:"promise"`
	Directive      string    `json:"directive"`
	Fuzzy          bool      `json:"fuzzy,omitempty"`
	SourcePacketID string    `json:"source_packet_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// New builds an active loop record.
func New(directive, promise string, maxIterations int, fuzzy bool, packetID string) (*Loop, error) {
	if strings.TrimSpace(directive) == "" {
		return nil, fmt.Errorf("loop directive must not be empty")
	}
	if strings.TrimSpace(promise) == "" {
		return nil, fmt.Errorf("loop promise must not be empty")
	}
	if maxIterations < 0 {
		return nil, fmt.Errorf("max iterations must be >= 0")
	}
	now := time.Now().UTC()
	return &Loop{
		ID:             uuid.NewString(),
		Status:         StatusActive,
		MaxIterations:  maxIterations,
		Promise:        promise,
		Directive:      directive,
		Fuzzy:          fuzzy,
		SourcePacketID: packetID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Terminal reports whether the loop can no longer change state.
func (l *Loop) Terminal() bool {
	return l.Status == StatusDone || l.Status == StatusCancelled
}

// Marker is the delimited completion token the agent must emit verbatim.
// Requiring the full delimited form keeps an incidental mention of the
// promise text from terminating the loop.
func (l *Loop) Marker() string {
	return "[[loop:done:" + l.Promise + "]]"
}

// PromiseSatisfied reports whether a turn's output completes the loop.
// Strict delimited matching is the default; fuzzy loops opt into bare
// substring matching of the promise text.
func (l *Loop) PromiseSatisfied(output string) bool {
	if l.Fuzzy {
		return strings.Contains(output, l.Promise)
	}
	return strings.Contains(output, l.Marker())
}

// Pause transitions active -> paused.
func (l *Loop) Pause() error {
	if l.Status != StatusActive {
		return fmt.Errorf("cannot pause loop in state %s", l.Status)
	}
	l.Status = StatusPaused
	l.touch()
	return nil
}

// Resume transitions paused -> active.
func (l *Loop) Resume() error {
	if l.Status != StatusPaused {
		return fmt.Errorf("cannot resume loop in state %s", l.Status)
	}
	l.Status = StatusActive
	l.touch()
	return nil
}

// Cancel moves any non-terminal loop to cancelled.
func (l *Loop) Cancel() error {
	if l.Terminal() {
		return fmt.Errorf("cannot cancel loop in terminal state %s", l.Status)
	}
	l.Status = StatusCancelled
	l.touch()
	return nil
}

// advance records one more blocked continuation. It reports whether the
// iteration budget is now exhausted, in which case the loop is done.
func (l *Loop) advance() bool {
	l.Iteration++
	l.touch()
	if l.MaxIterations > 0 && l.Iteration >= l.MaxIterations {
		l.Status = StatusDone
		return true
	}
	return false
}

// complete marks the promise as fulfilled.
func (l *Loop) complete() {
	l.Status = StatusDone
	l.touch()
}

func (l *Loop) touch() {
	l.UpdatedAt = time.Now().UTC()
}
