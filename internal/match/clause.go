package match

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Subject is the event projection a clause is evaluated against.
type Subject struct {
	Tool    string
	Input   map[string]any
	Output  map[string]any
	Prompt  string
	Subtype string
}

// Clause is one node of the predicate tree. A clause with several fields
// set is the conjunction of those fields; an empty clause matches every
// subject. AllOf and AnyOf nest further clauses, so new match kinds extend
// this struct instead of scattering conditionals through the engines.
type Clause struct {
	Tool   string         `yaml:"tool,omitempty" toml:"tool" json:"tool,omitempty"`
	Input  map[string]any `yaml:"input,omitempty" toml:"input" json:"input,omitempty"`
	Output map[string]any `yaml:"output,omitempty" toml:"output" json:"output,omitempty"`
	Prompt string         `yaml:"prompt,omitempty" toml:"prompt" json:"prompt,omitempty"`
	When   []string       `yaml:"when,omitempty" toml:"when" json:"when,omitempty"`
	AllOf  []Clause       `yaml:"all_of,omitempty" toml:"all_of" json:"all_of,omitempty"`
	AnyOf  []Clause       `yaml:"any_of,omitempty" toml:"any_of" json:"any_of,omitempty"`
}

// Matches evaluates the clause against a subject. Evaluation is pure and
// deterministic: identical (clause, subject) pairs always agree.
func (c Clause) Matches(s Subject) bool {
	if !Tool(s.Tool, c.Tool) {
		return false
	}
	if len(c.Input) > 0 && !Subset(c.Input, anyMap(s.Input)) {
		return false
	}
	if len(c.Output) > 0 && !Subset(c.Output, anyMap(s.Output)) {
		return false
	}
	if c.Prompt != "" && !Text(c.Prompt, s.Prompt) {
		return false
	}
	if !When(c.When, s.Subtype) {
		return false
	}
	for _, sub := range c.AllOf {
		if !sub.Matches(s) {
			return false
		}
	}
	if len(c.AnyOf) > 0 {
		any := false
		for _, sub := range c.AnyOf {
			if sub.Matches(s) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func anyMap(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Subset reports whether every key of pattern matches the corresponding
// value of candidate; extra candidate keys are ignored. Nested maps recurse;
// scalar pattern values match by exact equality, substring containment for
// strings, or "re:" regex. A string candidate that decodes as JSON is
// decoded before structural comparison.
func Subset(pattern map[string]any, candidate any) bool {
	if s, ok := candidate.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return false
		}
		candidate = decoded
	}
	m, ok := candidate.(map[string]any)
	if !ok {
		return false
	}
	for key, want := range pattern {
		got, present := m[key]
		if !present {
			return false
		}
		if !Value(want, got) {
			return false
		}
	}
	return true
}

// Value matches one pattern value against one candidate value.
func Value(pattern, candidate any) bool {
	switch want := pattern.(type) {
	case nil:
		return true
	case map[string]any:
		return Subset(want, candidate)
	case string:
		return Text(want, stringify(candidate))
	default:
		return scalarEqual(pattern, candidate)
	}
}

// Text matches a scalar string pattern against text: "re:" regex search,
// otherwise substring containment.
func Text(pattern, text string) bool {
	if expr, ok := strings.CutPrefix(pattern, regexPrefix); ok {
		rx, err := regexp.Compile(expr)
		if err != nil {
			return false
		}
		return rx.MatchString(text)
	}
	return strings.Contains(text, pattern)
}

// stringify renders a candidate value for text matching. Non-strings are
// JSON-encoded (map keys sorted by encoding/json) so patterns can reach
// into structures the rule author did not spell out as subsets.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// scalarEqual compares non-string scalars, normalizing numbers the way
// encoding/json and yaml decode them (float64 vs int).
func scalarEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
