package evidence

import (
	"sync"
	"time"

	"github.com/proofgate/proofgate/internal/domain/tool"
)

// Collector folds tool results and an optional AI review into a single
// evidence document. Safe for use from one run's goroutine; a fresh
// Collector is created per run.
type Collector struct {
	mu        sync.Mutex
	runID     string
	input     string
	env       map[string]string
	summaries []ToolCallSummary
	review    *AIReview
}

// NewCollector creates a collector for one run.
func NewCollector(runID, inputDescription string) *Collector {
	return &Collector{
		runID: runID,
		input: inputDescription,
		env:   map[string]string{},
	}
}

// SetEnvironment records an environment fact.
func (c *Collector) SetEnvironment(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.env[key] = value
}

// AddToolResult accumulates a summary for one tool result.
func (c *Collector) AddToolResult(name string, result tool.Result) {
	refs := make([]string, 0, len(result.Artifacts))
	for _, a := range result.Artifacts {
		refs = append(refs, a.Path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = append(c.summaries, ToolCallSummary{
		ToolName:       name,
		Status:         result.Status,
		DurationMs:     result.Metrics.DurationMs,
		ArtifactRefs:   refs,
		DecisionSource: result.DecisionSource(),
	})
}

// SetAIReview attaches the external review opinion.
func (c *Collector) SetAIReview(review AIReview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.review = &review
}

// Collect builds the evidence document. The shape is idempotent: with
// no new results between calls, a second Collect yields the same
// summaries and counts. Repro metadata is stamped at call time.
func (c *Collector) Collect(repro Repro) Evidence {
	c.mu.Lock()
	defer c.mu.Unlock()

	summaries := make([]ToolCallSummary, len(c.summaries))
	copy(summaries, c.summaries)

	env := make(map[string]string, len(c.env))
	for k, v := range c.env {
		env[k] = v
	}

	var review *AIReview
	if c.review != nil {
		r := *c.review
		review = &r
	}

	return Evidence{
		RunID:             c.runID,
		InputDescription:  c.input,
		Environment:       env,
		ToolCallSummaries: summaries,
		AIReview:          review,
		Repro:             repro,
		Summary:           deriveSummary(summaries),
		CollectedAt:       time.Now().UTC(),
	}
}

// deriveSummary computes the aggregate counts from the summaries.
// Deterministic: same summaries, same counts.
func deriveSummary(summaries []ToolCallSummary) Summary {
	s := Summary{Total: len(summaries)}
	for _, tc := range summaries {
		if tc.Status == tool.StatusSuccess {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
