package cel

import (
	"context"
	"strings"
	"testing"

	"github.com/proofgate/proofgate/internal/domain/tool"
)

func mustEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}
	return eval
}

func TestCompile_ValidExpression(t *testing.T) {
	t.Parallel()

	eval := mustEvaluator(t)
	prg, err := eval.Compile(`tool_name == "run_pytest"`)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if prg == nil {
		t.Fatal("Compile() returned nil program")
	}
}

func TestCompile_InvalidExpression(t *testing.T) {
	t.Parallel()

	eval := mustEvaluator(t)
	if _, err := eval.Compile(`this is not valid CEL !!!`); err == nil {
		t.Fatal("Compile() expected error for invalid expression, got nil")
	}
}

func TestCompile_SafetyLimits(t *testing.T) {
	t.Parallel()

	eval := mustEvaluator(t)

	if _, err := eval.Compile(""); err == nil {
		t.Error("Compile(empty) expected error")
	}

	long := `tool_name == "` + strings.Repeat("a", maxExpressionLength) + `"`
	if _, err := eval.Compile(long); err == nil {
		t.Error("Compile(overlong) expected error")
	}

	deep := strings.Repeat("(", maxNestingDepth+1) + "true" + strings.Repeat(")", maxNestingDepth+1)
	if _, err := eval.Compile(deep); err == nil {
		t.Error("Compile(deeply nested) expected error")
	}
}

func TestEvaluate_GuardConditions(t *testing.T) {
	t.Parallel()

	eval := mustEvaluator(t)
	rc := tool.RunContext{RunID: "run-1", Actor: "ci-runner", Tenant: "acme"}

	tests := []struct {
		name string
		expr string
		req  tool.Request
		want bool
	}{
		{
			name: "tool name match",
			expr: `tool_name == "run_pytest"`,
			req:  tool.Request{ToolName: "run_pytest"},
			want: true,
		},
		{
			name: "tool name mismatch",
			expr: `tool_name == "run_pytest"`,
			req:  tool.Request{ToolName: "fetch_logs"},
			want: false,
		},
		{
			name: "glob match",
			expr: `glob("run_*", tool_name)`,
			req:  tool.Request{ToolName: "run_playwright"},
			want: true,
		},
		{
			name: "actor gate",
			expr: `actor == "ci-runner" && tenant == "acme"`,
			req:  tool.Request{ToolName: "run_pytest"},
			want: true,
		},
		{
			name: "arg inspection",
			expr: `args["testPath"].startsWith("tests/")`,
			req:  tool.Request{ToolName: "run_pytest", Args: map[string]any{"testPath": "tests/api"}},
			want: true,
		},
		{
			name: "arg_contains blocks force flag",
			expr: `!arg_contains(args, "--force")`,
			req:  tool.Request{ToolName: "run_pytest", Args: map[string]any{"extra": "-x --force"}},
			want: false,
		},
		{
			name: "nil args tolerated",
			expr: `!arg_contains(args, "secret")`,
			req:  tool.Request{ToolName: "run_pytest"},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prg, err := eval.Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.expr, err)
			}
			got, err := eval.Evaluate(context.Background(), prg, rc, tt.req)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluate_NonBooleanResult(t *testing.T) {
	t.Parallel()

	eval := mustEvaluator(t)
	prg, err := eval.Compile(`tool_name`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := eval.Evaluate(context.Background(), prg, tool.RunContext{}, tool.Request{ToolName: "x"}); err == nil {
		t.Error("Evaluate() expected error for non-boolean expression")
	}
}
