package match

import "testing"

func TestEval_Basics(t *testing.T) {
	vars := map[string]string{
		"TOOL_NAME":  "Edit",
		"EVENT_NAME": "PreToolUse",
		"FILE_PATH":  "internal/server/main.go",
		"COMMAND":    "go test ./...",
	}

	cases := []struct {
		expr string
		want bool
	}{
		{"", true},
		{`${TOOL_NAME} == "Edit"`, true},
		{`${TOOL_NAME} != "Write"`, true},
		{"${EVENT_NAME} == PreToolUse", true},
		{"${FILE_PATH} matches *.go", true},
		{"${FILE_PATH} matches *.rb", false},
		{`${COMMAND} regex ^go\s`, true},
		{`${TOOL_NAME} == "Write" || ${TOOL_NAME} == "Edit"`, true},
		{`${TOOL_NAME} == "Write" && ${EVENT_NAME} == PreToolUse`, false},
		{`${TOOL_NAME} == "Edit" && ${EVENT_NAME} == PreToolUse`, true},
		{"${UNSET} == \"\"", true},
		{"${TOOL_NAME}", true},
		{"false", false},
		{"0", false},
		{"!${TOOL_NAME} == \"Write\"", true},
	}
	for _, tc := range cases {
		got, err := Eval(tc.expr, vars)
		if err != nil {
			t.Fatalf("eval %q error: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("eval %q = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEval_QuotedOperators(t *testing.T) {
	vars := map[string]string{"COMMAND": "echo '&&'"}
	got, err := Eval(`${COMMAND} == "echo '&&'"`, vars)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if !got {
		t.Error("operator inside quotes must not split the expression")
	}
}

func TestEval_InvalidRegex(t *testing.T) {
	if _, err := Eval("x regex [unclosed", nil); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestApplicable(t *testing.T) {
	vars := map[string]string{"TOOL_NAME": "Bash"}

	cases := []struct {
		skip, only string
		want       bool
	}{
		{"", "", true},
		{`${TOOL_NAME} == "Bash"`, "", false},
		{`${TOOL_NAME} == "Edit"`, "", true},
		{"", `${TOOL_NAME} == "Bash"`, true},
		{"", `${TOOL_NAME} == "Edit"`, false},
	}
	for _, tc := range cases {
		got, err := Applicable(tc.skip, tc.only, vars)
		if err != nil {
			t.Fatalf("applicable(%q, %q) error: %v", tc.skip, tc.only, err)
		}
		if got != tc.want {
			t.Errorf("applicable(%q, %q) = %v, want %v", tc.skip, tc.only, got, tc.want)
		}
	}

	if _, err := Applicable("x regex [bad", "", vars); err == nil {
		t.Fatal("broken skip condition must surface an error")
	}
}
