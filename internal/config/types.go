// Package config loads the declarative rule-set document driving the
// permission policy and instruction injection engines. One document is
// loaded per invocation from the project state directory; YAML is the
// canonical format with a TOML equivalent accepted.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/klauern/hookloop/internal/match"
)

// Config is the root of the rule-set document.
type Config struct {
	Policy  PolicyConfig  `yaml:"policy" toml:"policy" json:"policy"`
	Inject  InjectConfig  `yaml:"inject" toml:"inject" json:"inject"`
	Compact CompactConfig `yaml:"compact" toml:"compact" json:"compact"`
	Session SessionConfig `yaml:"session" toml:"session" json:"session"`
	Log     LogConfig     `yaml:"log" toml:"log" json:"log"`
}

// PolicyConfig drives the PreToolUse permission engine.
type PolicyConfig struct {
	// Default applies when no rule matches. Empty means ask: the engine
	// fails closed unless explicitly configured otherwise.
	Default string       `yaml:"default" toml:"default" json:"default"`
	Rules   []PolicyRule `yaml:"rules" toml:"rules" json:"rules"`
}

// PolicyRule pairs a predicate with a permission action. Rules are
// evaluated in declaration order; the first match decides.
type PolicyRule struct {
	Name         string         `yaml:"name" toml:"name" json:"name"`
	Match        match.Clause   `yaml:"match" toml:"match" json:"match"`
	Action       string         `yaml:"action" toml:"action" json:"action"`
	Reason       string         `yaml:"reason" toml:"reason" json:"reason"`
	UpdatedInput map[string]any `yaml:"updated_input" toml:"updated_input" json:"updated_input"`
	Skip         string         `yaml:"skip" toml:"skip" json:"skip"`
	Only         string         `yaml:"only" toml:"only" json:"only"`
}

// InjectConfig drives the instruction injection engine.
type InjectConfig struct {
	PromptsDir string       `yaml:"prompts_dir" toml:"prompts_dir" json:"prompts_dir"`
	Rules      []InjectRule `yaml:"rules" toml:"rules" json:"rules"`
}

// InjectRule contributes content when its condition holds. Every matching
// rule fires, in declaration order, and the contents concatenate.
type InjectRule struct {
	Name    string       `yaml:"name" toml:"name" json:"name"`
	Events  []string     `yaml:"events" toml:"events" json:"events"`
	When    []string     `yaml:"when" toml:"when" json:"when"`
	Match   match.Clause `yaml:"match" toml:"match" json:"match"`
	Include StringList   `yaml:"include" toml:"include" json:"include"`
	Text    StringList   `yaml:"text" toml:"text" json:"text"`
	Skip    string       `yaml:"skip" toml:"skip" json:"skip"`
	Only    string       `yaml:"only" toml:"only" json:"only"`
}

// CompactConfig tunes PreCompact behavior.
type CompactConfig struct {
	// BlockAuto refuses auto-compaction while still allowing /compact.
	BlockAuto bool `yaml:"block_auto" toml:"block_auto" json:"block_auto"`
	// InstructionsFile overrides the default compact instructions path.
	InstructionsFile string `yaml:"instructions_file" toml:"instructions_file" json:"instructions_file"`
}

// SessionConfig controls the handoff artifacts stored when a session ends:
// a markdown tail of the final conversation turns and the last TodoWrite
// todo list, each gated on the SessionEnd reason.
type SessionConfig struct {
	// TailPrompts is how many trailing user prompts the stored tail spans.
	// Zero disables tail storage.
	TailPrompts int        `yaml:"tail_prompts" toml:"tail_prompts" json:"tail_prompts"`
	TailWhen    StringList `yaml:"tail_when" toml:"tail_when" json:"tail_when"`
	TodoWhen    StringList `yaml:"todo_when" toml:"todo_when" json:"todo_when"`
}

// Log output formats.
const (
	LogFormatJSONL  = "jsonl"
	LogFormatPretty = "pretty"
)

// LogConfig controls the structured hook event log.
type LogConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Format     string `yaml:"format" toml:"format" json:"format"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" json:"max_age_days"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" toml:"compress" json:"compress"`
}

// StringList accepts either a single scalar or a sequence in the source
// document.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var one string
		if err := value.Decode(&one); err != nil {
			return err
		}
		if one != "" {
			*s = StringList{one}
		}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler with the same scalar-or-list
// flexibility.
func (s *StringList) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		if val != "" {
			*s = StringList{val}
		}
		return nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, str)
		}
		*s = StringList(out)
		return nil
	default:
		return fmt.Errorf("expected string or list of strings, got %T", v)
	}
}

// Default returns the built-in configuration used when no rule-set document
// exists: no rules, fail-closed policy, logging off.
func Default() *Config {
	return &Config{
		Policy: PolicyConfig{Default: "ask"},
		Session: SessionConfig{
			TailWhen: StringList{"prompt_input_exit", "other"},
			TodoWhen: StringList{"prompt_input_exit", "other", "clear"},
		},
		Log: LogConfig{
			Format:     LogFormatJSONL,
			MaxSizeMB:  10,
			MaxAgeDays: 30,
			MaxBackups: 5,
			Compress:   true,
		},
	}
}
