package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeRuleSet(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rule set: %v", err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeRuleSet(t, "rules.yml", `
policy:
  default: allow
  rules:
    - name: no-force-push
      match:
        tool: Bash
        input:
          command: "git push --force"
      action: deny
      reason: force pushes are blocked here
inject:
  rules:
    - name: greet
      events: [SessionStart]
      text: "welcome"
compact:
  block_auto: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Policy.Default != "allow" {
		t.Errorf("policy default = %q", cfg.Policy.Default)
	}
	if len(cfg.Policy.Rules) != 1 || cfg.Policy.Rules[0].Action != "deny" {
		t.Errorf("policy rules = %+v", cfg.Policy.Rules)
	}
	if got := cfg.Policy.Rules[0].Match.Input["command"]; got != "git push --force" {
		t.Errorf("match input = %v", got)
	}
	if len(cfg.Inject.Rules) != 1 || cfg.Inject.Rules[0].Text[0] != "welcome" {
		t.Errorf("inject rules = %+v", cfg.Inject.Rules)
	}
	if !cfg.Compact.BlockAuto {
		t.Error("compact.block_auto not decoded")
	}
}

func TestLoad_SessionSection(t *testing.T) {
	path := writeRuleSet(t, "rules.yml", `
session:
  tail_prompts: 2
  tail_when: [prompt_input_exit]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Session.TailPrompts != 2 {
		t.Errorf("tail_prompts = %d", cfg.Session.TailPrompts)
	}
	if len(cfg.Session.TailWhen) != 1 || cfg.Session.TailWhen[0] != "prompt_input_exit" {
		t.Errorf("tail_when = %v", cfg.Session.TailWhen)
	}
	// Unset keys keep their defaults.
	if len(cfg.Session.TodoWhen) != 3 {
		t.Errorf("todo_when = %v", cfg.Session.TodoWhen)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeRuleSet(t, "rules.toml", `
[policy]
default = "deny"

[[policy.rules]]
name = "safe-reads"
action = "allow"

[policy.rules.match]
tool = "Read"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Policy.Default != "deny" {
		t.Errorf("policy default = %q", cfg.Policy.Default)
	}
	if len(cfg.Policy.Rules) != 1 || cfg.Policy.Rules[0].Match.Tool != "Read" {
		t.Errorf("policy rules = %+v", cfg.Policy.Rules)
	}
}

func TestLoad_SchemaRejectsTypos(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown top-level key", "polciy:\n  default: allow\n"},
		{"unknown rule key", "policy:\n  rules:\n    - action: allow\n      matcher:\n        tool: Bash\n"},
		{"missing action", "policy:\n  rules:\n    - name: x\n"},
		{"bad action value", "policy:\n  rules:\n    - action: maybe\n"},
		{"bad default", "policy:\n  default: yolo\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeRuleSet(t, "rules.yml", tc.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected schema rejection")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %v is not a *ConfigError", err)
			}
		})
	}
}

func TestLoad_InjectRuleNeedsContent(t *testing.T) {
	path := writeRuleSet(t, "rules.yml", "inject:\n  rules:\n    - name: empty\n")
	if _, err := Load(path); err == nil {
		t.Fatal("inject rule without include or text must be rejected")
	}
}

func TestLoad_EmptyPathDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Policy.Default != "ask" {
		t.Errorf("default policy = %q, want ask", cfg.Policy.Default)
	}
	if cfg.Log.Enabled {
		t.Error("logging must default off")
	}
	if cfg.Log.Format != LogFormatJSONL {
		t.Errorf("log format = %q", cfg.Log.Format)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOOKLOOP_POLICY_DEFAULT", "deny")
	t.Setenv("HOOKLOOP_LOG", "true")
	t.Setenv("HOOKLOOP_LOG_FORMAT", "pretty")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Policy.Default != "deny" {
		t.Errorf("policy default = %q", cfg.Policy.Default)
	}
	if !cfg.Log.Enabled || cfg.Log.Format != LogFormatPretty {
		t.Errorf("log config = %+v", cfg.Log)
	}
}

func TestLoad_StringListScalar(t *testing.T) {
	path := writeRuleSet(t, "rules.yml", `
inject:
  rules:
    - name: single
      include: notes.md
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(cfg.Inject.Rules[0].Include) != 1 || cfg.Inject.Rules[0].Include[0] != "notes.md" {
		t.Errorf("include = %v", cfg.Inject.Rules[0].Include)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	if got := Discover(dir); got != "" {
		t.Errorf("discover in empty dir = %q", got)
	}
	yml := filepath.Join(dir, "rules.yml")
	if err := os.WriteFile(yml, []byte("policy: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Discover(dir); got != yml {
		t.Errorf("discover = %q, want %q", got, yml)
	}

	t.Setenv("HOOKLOOP_CONFIG", "/elsewhere/rules.yaml")
	if got := Discover(dir); got != "/elsewhere/rules.yaml" {
		t.Errorf("env override ignored: %q", got)
	}
}
