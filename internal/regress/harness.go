package regress

import (
	"context"
	"log/slog"
	"time"

	"github.com/proofgate/proofgate/internal/service"
)

// CaseResult is the replay outcome of one golden case.
type CaseResult struct {
	// CaseID correlates with the golden case.
	CaseID string `json:"caseId"`
	// RunID is the pipeline run that produced this result.
	RunID string `json:"runId"`
	// Decision is the rendered gate decision.
	Decision string `json:"decision"`
	// Passed reports whether the decision (and any pinned summary
	// fields) matched the expectation.
	Passed bool `json:"passed"`
	// Detail explains a failed expectation or run error.
	Detail string `json:"detail,omitempty"`
	// DurationMs is the wall-clock replay time for the case.
	DurationMs int64 `json:"durationMs"`
}

// runExecutor is the slice of the run pipeline the harness needs.
type runExecutor interface {
	Execute(ctx context.Context, req service.RunRequest) (service.RunResult, error)
}

// Harness replays golden cases through the pipeline.
type Harness struct {
	runner runExecutor
	logger *slog.Logger
}

// NewHarness creates a harness over the given runner.
func NewHarness(runner runExecutor, logger *slog.Logger) *Harness {
	return &Harness{runner: runner, logger: logger}
}

// RunAll replays every case in order. A run-level error (configuration
// or environment fault) marks the case failed rather than aborting the
// whole replay, so one broken case cannot hide the rest.
func (h *Harness) RunAll(ctx context.Context, ds Dataset) []CaseResult {
	results := make([]CaseResult, 0, len(ds.Cases))
	for _, c := range ds.Cases {
		results = append(results, h.runCase(ctx, c))
	}
	return results
}

func (h *Harness) runCase(ctx context.Context, c GoldenCase) CaseResult {
	start := time.Now()

	req := service.RunRequest{
		Intent:         c.Input,
		ToolName:       c.Options.ToolName,
		Args:           c.Options.Args,
		TimeoutSeconds: c.Options.TimeoutSeconds,
		Review:         c.Options.Review,
	}

	runResult, err := h.runner.Execute(ctx, req)
	result := CaseResult{
		CaseID:     c.ID,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Detail = "run failed: " + err.Error()
		h.logger.Error("golden case errored", "case", c.ID, "error", err)
		return result
	}

	result.RunID = runResult.RunID
	result.Decision = runResult.Decision.Decision
	result.Passed, result.Detail = c.check(runResult)
	result.DurationMs = time.Since(start).Milliseconds()

	h.logger.Info("golden case replayed",
		"case", c.ID,
		"decision", result.Decision,
		"passed", result.Passed,
	)
	return result
}

// check compares the run outcome with the case expectation.
func (c GoldenCase) check(r service.RunResult) (bool, string) {
	if r.Decision.Decision != c.Expected.Decision {
		return false, "decision " + r.Decision.Decision + ", expected " + c.Expected.Decision
	}
	if exp := c.Expected.Summary; exp != nil {
		got := r.Evidence.Summary
		if got.Total != exp.Total || got.Succeeded != exp.Succeeded || got.Failed != exp.Failed {
			return false, "summary mismatch"
		}
	}
	return true, ""
}
