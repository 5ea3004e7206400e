package evidence

import (
	"testing"

	"github.com/proofgate/proofgate/internal/domain/tool"
)

func TestCollector_SummaryCounts(t *testing.T) {
	t.Parallel()

	c := NewCollector("run-1", "verify checkout flow")
	c.AddToolResult("run_pytest", tool.Result{
		Status:  tool.StatusSuccess,
		Metrics: tool.Metrics{DurationMs: 1200, ExitCode: 0},
		Artifacts: []tool.Artifact{
			{Path: "run_pytest/report.xml", Type: tool.ArtifactJUnitXML},
		},
	})
	c.AddToolResult("run_playwright", tool.Result{
		Status:  tool.StatusFailed,
		Metrics: tool.Metrics{DurationMs: 4300, ExitCode: 1},
	})

	ev := c.Collect(Repro{GitSHA: "abc123", PolicyHash: "deadbeef"})

	if ev.Summary.Total != 2 || ev.Summary.Succeeded != 1 || ev.Summary.Failed != 1 {
		t.Errorf("Summary = %+v, want total=2 succeeded=1 failed=1", ev.Summary)
	}
	if len(ev.ToolCallSummaries) != 2 {
		t.Fatalf("len(ToolCallSummaries) = %d, want 2", len(ev.ToolCallSummaries))
	}
	if got := ev.ToolCallSummaries[0].ArtifactRefs; len(got) != 1 || got[0] != "run_pytest/report.xml" {
		t.Errorf("ArtifactRefs = %v", got)
	}
	if ev.Repro.GitSHA != "abc123" {
		t.Errorf("Repro.GitSHA = %q", ev.Repro.GitSHA)
	}
}

func TestCollector_CollectIdempotent(t *testing.T) {
	t.Parallel()

	c := NewCollector("run-2", "")
	c.AddToolResult("run_pytest", tool.Result{Status: tool.StatusSuccess})

	first := c.Collect(Repro{})
	second := c.Collect(Repro{})

	if first.Summary != second.Summary {
		t.Errorf("Summary changed between collects: %+v vs %+v", first.Summary, second.Summary)
	}
	if len(first.ToolCallSummaries) != len(second.ToolCallSummaries) {
		t.Errorf("summaries changed between collects")
	}
}

func TestCollector_BlockedCallCarriesSource(t *testing.T) {
	t.Parallel()

	c := NewCollector("run-3", "")
	c.AddToolResult("run_sql", tool.BlockedResult("tool not allowlisted", tool.SourcePolicyBlock))

	ev := c.Collect(Repro{})
	if ev.Summary.Failed != 1 {
		t.Errorf("Summary.Failed = %d, want 1", ev.Summary.Failed)
	}
	if got := ev.ToolCallSummaries[0].DecisionSource; got != tool.SourcePolicyBlock {
		t.Errorf("DecisionSource = %q, want %q", got, tool.SourcePolicyBlock)
	}
}

func TestCollector_AIReviewCopied(t *testing.T) {
	t.Parallel()

	c := NewCollector("run-4", "")
	c.SetAIReview(AIReview{Confidence: 0.9, Scores: map[string]float64{"correctness": 0.95}})

	ev := c.Collect(Repro{})
	if ev.AIReview == nil || ev.AIReview.Confidence != 0.9 {
		t.Fatalf("AIReview = %+v, want confidence 0.9", ev.AIReview)
	}
}
