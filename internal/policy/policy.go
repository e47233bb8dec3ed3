// Package policy implements the PreToolUse permission engine: an ordered
// rule list evaluated first-match-wins against the tool name and its
// declared input. The engine is a pure function of (rules, event); it never
// executes or introspects the tool itself.
package policy

import (
	"fmt"

	"github.com/klauern/hookloop/internal/config"
	"github.com/klauern/hookloop/internal/interp"
	"github.com/klauern/hookloop/internal/match"
	"github.com/klauern/hookloop/internal/protocol"
)

// Decision is the single verdict for one PreToolUse event.
type Decision struct {
	Action       string // allow, ask, or deny
	Reason       string
	Rule         string // matched rule name, "" for the default
	UpdatedInput map[string]any
	Warnings     []string
}

// Evaluate runs the ordered rule list against one PreToolUse event. The
// first matching rule decides; with no match the configured default
// applies, so an empty rule set still fails closed.
func Evaluate(cfg config.PolicyConfig, ev *protocol.Event) Decision {
	subject := match.Subject{
		Tool:  ev.ToolName,
		Input: ev.ToolInput,
	}
	vars := interp.Vars(ev)
	scope := interp.Scope(ev)

	var warnings []string
	for i, rule := range cfg.Rules {
		ok, err := match.Applicable(rule.Skip, rule.Only, vars)
		if err != nil {
			// A broken condition must not widen permissions: report it and
			// treat the rule as not matching.
			warnings = append(warnings, fmt.Sprintf("policy rule %s: %v", label(rule.Name, i), err))
			continue
		}
		if !ok || !rule.Match.Matches(subject) {
			continue
		}

		reason, warns := interp.Render(rule.Reason, scope)
		if reason == "" {
			reason = fmt.Sprintf("matched policy rule %s", label(rule.Name, i))
		}
		return Decision{
			Action:       rule.Action,
			Reason:       reason,
			Rule:         label(rule.Name, i),
			UpdatedInput: rule.UpdatedInput,
			Warnings:     append(warnings, warns...),
		}
	}

	return Decision{Action: cfg.Default, Warnings: warnings}
}

// Result converts a decision into the protocol response. The default
// decision with no reason stays silent on the decision channel only when it
// defers ("ask" from an unmatched default is still emitted explicitly so
// the host cannot misread a timeout as consent).
func (d Decision) Result() *protocol.Result {
	res := protocol.Permission(d.Action, d.Reason, d.UpdatedInput)
	res.Warnings = d.Warnings
	return res
}

func label(name string, i int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("#%d", i)
}
