package match

import (
	"fmt"
	"regexp"
	"strings"
)

var exprVarPattern = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// Eval evaluates the small boolean language used by rule skip/only
// conditions. Supported: ${VAR} substitution, ==, !=, matches (glob on the
// right-hand side), regex, &&, ||, unary !. Deliberately not a full parser;
// conditions are expected to stay short.
func Eval(expr string, vars map[string]string) (bool, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return true, nil
	}
	expanded := exprVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(m, "${"), "}")
		return vars[key]
	})

	any := false
	for _, orPart := range splitOutsideQuotes(expanded, "||") {
		all := true
		for _, andPart := range splitOutsideQuotes(orPart, "&&") {
			v, err := evalComparison(strings.TrimSpace(andPart))
			if err != nil {
				return false, err
			}
			all = all && v
		}
		any = any || all
	}
	return any, nil
}

// Applicable evaluates a rule's optional skip/only condition pair: skip
// true or only false excludes the rule.
func Applicable(skip, only string, vars map[string]string) (bool, error) {
	if skip != "" {
		v, err := Eval(skip, vars)
		if err != nil {
			return false, fmt.Errorf("skip: %w", err)
		}
		if v {
			return false, nil
		}
	}
	if only != "" {
		v, err := Eval(only, vars)
		if err != nil {
			return false, fmt.Errorf("only: %w", err)
		}
		if !v {
			return false, nil
		}
	}
	return true, nil
}

func evalComparison(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return true, nil
	}
	if rest, ok := strings.CutPrefix(s, "!"); ok {
		inner, err := evalComparison(rest)
		if err != nil {
			return false, err
		}
		return !inner, nil
	}

	for _, op := range []string{"==", "!=", "matches", "regex"} {
		idx := indexOutsideQuotes(s, op)
		if idx < 0 {
			continue
		}
		left := unquote(strings.TrimSpace(s[:idx]))
		right := unquote(strings.TrimSpace(s[idx+len(op):]))
		switch op {
		case "==":
			return left == right, nil
		case "!=":
			return left != right, nil
		case "matches":
			return globAnyToken(left, right), nil
		case "regex":
			rx, err := regexp.Compile(right)
			if err != nil {
				return false, fmt.Errorf("invalid regex %q: %w", right, err)
			}
			return rx.MatchString(left), nil
		}
	}

	// Bareword truthiness.
	switch strings.ToLower(unquote(s)) {
	case "false", "0", "":
		return false, nil
	default:
		return true, nil
	}
}

// globAnyToken treats a whitespace-separated left side as multiple tokens;
// any token matching the glob passes.
func globAnyToken(left, pattern string) bool {
	tokens := strings.Fields(left)
	if len(tokens) == 0 {
		tokens = []string{left}
	}
	for _, t := range tokens {
		if glob(pattern, t) {
			return true
		}
	}
	return false
}

func unquote(s string) string {
	return strings.Trim(s, `"'`)
}

func splitOutsideQuotes(s, sep string) []string {
	var parts []string
	start := 0
	for {
		idx := indexOutsideQuotes(s[start:], sep)
		if idx < 0 {
			parts = append(parts, s[start:])
			return parts
		}
		parts = append(parts, s[start:start+idx])
		start += idx + len(sep)
	}
}

func indexOutsideQuotes(s, sub string) int {
	var quote byte
	for i := 0; i+len(sub) <= len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
