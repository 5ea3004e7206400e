// Package evidence contains the structured evidence document: the
// persisted record of everything observed during a run that the gate
// decision is based on.
package evidence

import "time"

// ToolCallSummary condenses one tool result for the evidence document.
type ToolCallSummary struct {
	// ToolName is the tool that produced this result.
	ToolName string `json:"toolName"`
	// Status is the tool result status (SUCCESS or FAILED).
	Status string `json:"status"`
	// DurationMs is the wall-clock duration of the call.
	DurationMs int64 `json:"durationMs"`
	// ArtifactRefs are paths (relative to the run directory) of
	// artifacts collected from this call.
	ArtifactRefs []string `json:"artifactRefs,omitempty"`
	// DecisionSource is set when governance stopped the call before
	// execution (policy_block, policy_rule, governance_short_circuit).
	DecisionSource string `json:"decisionSource,omitempty"`
}

// AIReview is an external scored opinion consumed, never computed, here.
type AIReview struct {
	// Scores are per-dimension scores in [0,1].
	Scores map[string]float64 `json:"scores,omitempty"`
	// Confidence is the overall review confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Strategy names the aggregation strategy that produced the opinion.
	Strategy string `json:"strategy,omitempty"`
}

// Repro is the metadata tuple that makes a run's result attributable
// to an exact system state.
type Repro struct {
	// GitSHA is the code revision.
	GitSHA string `json:"gitSha"`
	// PolicyHash is the content hash of the policy in force.
	PolicyHash string `json:"policyHash"`
	// DepsFingerprint digests the dependency lockfile.
	DepsFingerprint string `json:"depsFingerprint"`
}

// Summary is the derived aggregate over the tool call summaries. It is
// never independently mutable: any change must flow from a change to
// the underlying tool results.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Evidence is the durable artifact of one run.
type Evidence struct {
	// RunID correlates the document with its run.
	RunID string `json:"runId"`
	// InputDescription is the free-text intent or request description.
	InputDescription string `json:"inputDescription,omitempty"`
	// Environment captures relevant environment facts (os, runner host).
	Environment map[string]string `json:"environment,omitempty"`
	// ToolCallSummaries lists every tool call folded into this run.
	ToolCallSummaries []ToolCallSummary `json:"toolCallSummaries"`
	// AIReview is the optional external review opinion.
	AIReview *AIReview `json:"aiReview,omitempty"`
	// Repro stamps the exact system state at collection time.
	Repro Repro `json:"repro"`
	// Summary is the derived aggregate.
	Summary Summary `json:"summary"`
	// Decision is the gate verdict, embedded after the gate renders it.
	Decision string `json:"decision,omitempty"`
	// CollectedAt is when Collect stamped the document.
	CollectedAt time.Time `json:"collectedAt"`
}
