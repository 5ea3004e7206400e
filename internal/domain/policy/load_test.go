package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const samplePolicy = `
version: "1.0"
high_risk_keywords: ["drop table", "rm -rf"]
high_risk_patterns: ["(?i)delete\\s+from"]
tools:
  allowlist: ["run_pytest", "run_playwright"]
  rules:
    - tool: run_pytest
      condition: 'args.testPath.startsWith("tests")'
cost_governance:
  timeout_seconds: 120
  max_retries: 1
sandbox:
  enabled: true
  mode: subprocess
ai_review:
  enabled: true
  strategy: weighted_average
  models:
    - name: reviewer-a
      provider: acme
      weight: 1.0
      temperature: 0.2
  thresholds:
    pass_confidence: 0.85
    hitl_confidence: 0.6
  dimensions: ["correctness", "coverage"]
`

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writePolicy(t, samplePolicy))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Version != "1.0" {
		t.Errorf("Version = %q, want %q", cfg.Version, "1.0")
	}
	if got := cfg.CostGovernance.TimeoutSeconds; got != 120 {
		t.Errorf("TimeoutSeconds = %d, want 120", got)
	}
	if !cfg.Tools.Allows("run_pytest") {
		t.Error("Allows(run_pytest) = false, want true")
	}
	if cfg.Tools.Allows("delete_everything") {
		t.Error("Allows(delete_everything) = true, want false")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`version: "1.0"`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.Sandbox.Mode != ModeSubprocess {
		t.Errorf("Sandbox.Mode = %q, want %q", cfg.Sandbox.Mode, ModeSubprocess)
	}
	if cfg.Sandbox.Container.Image != DefaultContainerImage {
		t.Errorf("Container.Image = %q, want %q", cfg.Sandbox.Container.Image, DefaultContainerImage)
	}
	if cfg.Sandbox.Container.NetworkPolicy != NetworkDeny {
		t.Errorf("NetworkPolicy = %q, want %q", cfg.Sandbox.Container.NetworkPolicy, NetworkDeny)
	}
	if cfg.CostGovernance.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Errorf("TimeoutSeconds = %d, want %d", cfg.CostGovernance.TimeoutSeconds, DefaultTimeoutSeconds)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "malformed yaml",
			content: "version: [unclosed",
		},
		{
			name:    "missing version",
			content: "tools:\n  allowlist: []\n",
		},
		{
			name: "inverted thresholds",
			content: `
version: "1.0"
ai_review:
  thresholds:
    pass_confidence: 0.5
    hitl_confidence: 0.8
`,
		},
		{
			name: "invalid sandbox mode",
			content: `
version: "1.0"
sandbox:
  mode: hypervisor
`,
		},
		{
			name: "invalid high risk pattern",
			content: `
version: "1.0"
high_risk_patterns: ["["]
`,
		},
		{
			name: "rule for tool outside allowlist",
			content: `
version: "1.0"
tools:
  allowlist: ["run_pytest"]
  rules:
    - tool: run_playwright
      condition: "true"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !errors.Is(err, ErrPolicyLoad) {
				t.Errorf("error %v is not ErrPolicyLoad", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrPolicyLoad) {
		t.Errorf("Load() error = %v, want ErrPolicyLoad", err)
	}
}
