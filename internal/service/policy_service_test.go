package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/proofgate/proofgate/internal/domain/policy"
	"github.com/proofgate/proofgate/internal/domain/tool"
)

const testPolicyYAML = `
version: "1"
high_risk_keywords:
  - drop database
high_risk_patterns:
  - "rm\\s+-rf"
tools:
  allowlist:
    - run_pytest
    - run_playwright
  rules:
    - tool: run_pytest
      condition: '!arg_contains(args, "--force")'
cost_governance:
  timeout_seconds: 60
ai_review:
  enabled: true
  thresholds:
    pass_confidence: 0.85
    hitl_confidence: 0.6
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func newTestPolicyService(t *testing.T) *PolicyService {
	t.Helper()
	svc, err := NewPolicyService(writePolicy(t, testPolicyYAML), discardLogger())
	if err != nil {
		t.Fatalf("NewPolicyService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewPolicyService_InvalidPolicyFails(t *testing.T) {
	t.Parallel()

	path := writePolicy(t, "version: \"1\"\nnot_a_field: true\n")
	if _, err := NewPolicyService(path, discardLogger()); !errors.Is(err, policy.ErrPolicyLoad) {
		t.Errorf("NewPolicyService() error = %v, want ErrPolicyLoad", err)
	}
}

func TestSnapshot_Decide(t *testing.T) {
	t.Parallel()

	svc := newTestPolicyService(t)
	snap := svc.Current()
	rc := tool.RunContext{RunID: "run-1", Actor: "tester"}

	tests := []struct {
		name       string
		req        tool.Request
		allowed    bool
		wantSource string
	}{
		{
			name:    "allowlisted tool passes",
			req:     tool.Request{ToolName: "run_playwright"},
			allowed: true,
		},
		{
			name:       "unlisted tool blocked",
			req:        tool.Request{ToolName: "fetch_logs"},
			wantSource: tool.SourcePolicyBlock,
		},
		{
			name:    "guard allows clean args",
			req:     tool.Request{ToolName: "run_pytest", Args: map[string]any{"testPath": "tests"}},
			allowed: true,
		},
		{
			name:       "guard denies force flag",
			req:        tool.Request{ToolName: "run_pytest", Args: map[string]any{"extra": "--force"}},
			wantSource: tool.SourcePolicyRule,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := snap.Decide(context.Background(), rc, tt.req)
			if d.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v (reason %q)", d.Allowed, tt.allowed, d.Reason)
			}
			if !tt.allowed && d.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", d.Source, tt.wantSource)
			}
		})
	}
}

func TestReload_SwapsSnapshotAndClearsCache(t *testing.T) {
	t.Parallel()

	path := writePolicy(t, testPolicyYAML)
	svc, err := NewPolicyService(path, discardLogger())
	if err != nil {
		t.Fatalf("NewPolicyService: %v", err)
	}
	defer svc.Close()

	before := svc.Current()
	if sr := svc.ScreenContent("drop database now"); !sr.Flagged {
		t.Fatal("expected flagged content before reload")
	}
	if svc.cache.Size() == 0 {
		t.Fatal("cache empty after screening")
	}

	updated := `
version: "2"
tools:
  allowlist:
    - fetch_logs
`
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	after := svc.Current()
	if after.Hash == before.Hash {
		t.Error("hash unchanged after reload of different content")
	}
	if after.Config.Version != "2" {
		t.Errorf("Version = %q, want 2", after.Config.Version)
	}
	if svc.cache.Size() != 0 {
		t.Error("cache not cleared on reload")
	}

	// The new document drops the screening keywords entirely.
	if sr := svc.ScreenContent("drop database now"); sr.Flagged {
		t.Error("content still flagged under keyword-free policy")
	}
}

func TestReload_BadDocumentKeepsPrevious(t *testing.T) {
	t.Parallel()

	path := writePolicy(t, testPolicyYAML)
	svc, err := NewPolicyService(path, discardLogger())
	if err != nil {
		t.Fatalf("NewPolicyService: %v", err)
	}
	defer svc.Close()
	before := svc.Current()

	if err := os.WriteFile(path, []byte("{{nope"), 0o600); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}
	if err := svc.Reload(); !errors.Is(err, policy.ErrPolicyLoad) {
		t.Fatalf("Reload() error = %v, want ErrPolicyLoad", err)
	}
	if svc.Current() != before {
		t.Error("snapshot replaced despite failed reload")
	}
}

func TestScreenContent(t *testing.T) {
	t.Parallel()

	svc := newTestPolicyService(t)

	tests := []struct {
		name    string
		content string
		flagged bool
	}{
		{name: "keyword case-insensitive", content: "please DROP DATABASE prod", flagged: true},
		{name: "pattern match", content: "run rm  -rf /tmp/x", flagged: true},
		{name: "clean content", content: "run the api tests", flagged: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sr := svc.ScreenContent(tt.content)
			if sr.Flagged != tt.flagged {
				t.Errorf("ScreenContent(%q).Flagged = %v, want %v", tt.content, sr.Flagged, tt.flagged)
			}
			if tt.flagged && sr.Reason == "" {
				t.Error("flagged result carries no reason")
			}
			// Second call must hit the cache and agree.
			if again := svc.ScreenContent(tt.content); again != sr {
				t.Errorf("cached result %+v differs from first %+v", again, sr)
			}
		})
	}
}

func TestResultCache_LRUEviction(t *testing.T) {
	t.Parallel()

	c := newResultCache(2)
	c.Put(1, ScreenResult{Flagged: true, Reason: "a"})
	c.Put(2, ScreenResult{Flagged: false})
	c.Get(1) // promote 1
	c.Put(3, ScreenResult{Flagged: true, Reason: "c"})

	if _, ok := c.Get(2); ok {
		t.Error("expected key 2 evicted as least recently used")
	}
	if r, ok := c.Get(1); !ok || r.Reason != "a" {
		t.Errorf("Get(1) = %+v, %v, want retained", r, ok)
	}
	if _, ok := c.Get(3); !ok {
		t.Error("expected key 3 present")
	}
}
