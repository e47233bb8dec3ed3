package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// Exit codes the host inspects alongside the structured output. The code
// and the decision must agree: a blocking response never reports plain
// success, and advisory output never reports failure.
const (
	ExitOK       = 0 // proceed; stdout may carry a structured response
	ExitOperator = 1 // non-blocking error, stderr shown to the operator
	ExitBlocking = 2 // blocking error, stderr fed back to the agent
)

// HookSpecificOutput carries the per-event structured payload the host
// understands, keyed by hookEventName.
type HookSpecificOutput struct {
	HookEventName            string         `json:"hookEventName"`
	PermissionDecision       string         `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string         `json:"permissionDecisionReason,omitempty"`
	UpdatedInput             map[string]any `json:"updatedInput,omitempty"`
	AdditionalContext        string         `json:"additionalContext,omitempty"`
}

// Output is the single JSON object written to stdout.
type Output struct {
	Decision           string              `json:"decision,omitempty"` // "block" or empty
	Reason             string              `json:"reason,omitempty"`
	Continue           *bool               `json:"continue,omitempty"`
	StopReason         string              `json:"stopReason,omitempty"`
	SystemMessage      string              `json:"systemMessage,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// Result bundles everything one invocation hands back to the host: the
// stdout object (nil means no structured output), the process exit code,
// and operator-visible warnings for stderr.
type Result struct {
	Output   *Output
	ExitCode int
	Warnings []string
}

// OK is an empty success result: no output, exit 0, host default applies.
func OK() *Result {
	return &Result{ExitCode: ExitOK}
}

// Permission builds a PreToolUse result carrying an allow/ask/deny decision.
func Permission(decision, reason string, updatedInput map[string]any) *Result {
	return &Result{
		ExitCode: ExitOK,
		Output: &Output{
			HookSpecificOutput: &HookSpecificOutput{
				HookEventName:            string(PreToolUseEvent),
				PermissionDecision:       decision,
				PermissionDecisionReason: reason,
				UpdatedInput:             updatedInput,
			},
		},
	}
}

// AdditionalContext builds a result that injects text into the agent's
// context for the given event kind.
func AdditionalContext(kind EventKind, text string) *Result {
	return &Result{
		ExitCode: ExitOK,
		Output: &Output{
			HookSpecificOutput: &HookSpecificOutput{
				HookEventName:     string(kind),
				AdditionalContext: text,
			},
		},
	}
}

// BlockStop builds a Stop result that refuses termination and re-delivers
// reason to the agent so the turn continues.
func BlockStop(reason string) *Result {
	return &Result{
		ExitCode: ExitOK,
		Output: &Output{
			Decision: "block",
			Reason:   reason,
		},
	}
}

// Halt builds a result that stops the host entirely (continue:false), used
// for example to refuse auto-compaction.
func Halt(stopReason string) *Result {
	cont := false
	return &Result{
		ExitCode: ExitOK,
		Output: &Output{
			Continue:   &cont,
			StopReason: stopReason,
		},
	}
}

// Emit writes the result's structured output to stdout and its warnings to
// stderr, returning the exit code the process must use.
func Emit(stdout, stderr io.Writer, res *Result) (int, error) {
	for _, w := range res.Warnings {
		fmt.Fprintln(stderr, w)
	}
	if res.Output != nil {
		data, err := json.Marshal(res.Output)
		if err != nil {
			return ExitOperator, fmt.Errorf("marshal hook output: %w", err)
		}
		if _, err := fmt.Fprintln(stdout, string(data)); err != nil {
			return ExitOperator, err
		}
	}
	return res.ExitCode, nil
}
