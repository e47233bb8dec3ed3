package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Well-known rule-set file names under the project state directory, in
// discovery order.
var ruleSetNames = []string{"rules.yml", "rules.yaml", "rules.toml"}

// ConfigError marks a malformed rule-set document. It is fatal to the
// invocation that hit it: the engines never run against a silently empty
// or partially parsed policy.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule-set config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Discover returns the rule-set path for a project state directory, or ""
// when no document exists. HOOKLOOP_CONFIG overrides discovery entirely.
func Discover(stateDir string) string {
	if p := os.Getenv("HOOKLOOP_CONFIG"); p != "" {
		return p
	}
	for _, name := range ruleSetNames {
		p := filepath.Join(stateDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load reads, validates, and decodes one rule-set document. A missing path
// ("" from Discover) yields the built-in defaults; anything unreadable or
// schema-invalid is a *ConfigError.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		applyEnv(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var doc map[string]any
	isTOML := strings.EqualFold(filepath.Ext(path), ".toml")
	if isTOML {
		err = toml.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if err := validateDocument(doc); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	if isTOML {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if err := normalize(cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	applyEnv(cfg)
	return cfg, nil
}

// normalize fills defaults the schema leaves open.
func normalize(cfg *Config) error {
	switch cfg.Policy.Default {
	case "":
		cfg.Policy.Default = "ask"
	case "allow", "ask", "deny":
	default:
		return fmt.Errorf("invalid policy default %q", cfg.Policy.Default)
	}
	for i, r := range cfg.Inject.Rules {
		if len(r.Include) == 0 && len(r.Text) == 0 {
			return fmt.Errorf("inject rule %s: no include files or text", ruleLabel(r.Name, i))
		}
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = LogFormatJSONL
	}
	return nil
}

func ruleLabel(name string, i int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("#%d", i)
}

// applyEnv folds simple key/value environment overrides into a loaded
// configuration.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HOOKLOOP_POLICY_DEFAULT"); v == "allow" || v == "ask" || v == "deny" {
		cfg.Policy.Default = v
	}
	if v, ok := envBool("HOOKLOOP_LOG"); ok {
		cfg.Log.Enabled = v
	}
	if v := os.Getenv("HOOKLOOP_LOG_FORMAT"); v == LogFormatJSONL || v == LogFormatPretty {
		cfg.Log.Format = v
	}
}

// envBool parses a boolean environment variable; the second return reports
// whether the variable was set to a recognized value.
func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "y":
		return true, true
	case "0", "false", "no", "off", "n", "":
		return false, true
	default:
		return false, false
	}
}
