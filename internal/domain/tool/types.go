// Package tool contains the domain types shared by everything that
// requests, executes, or records a governed tool call.
package tool

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a tool name has no registered handler.
var ErrNotFound = errors.New("tool not found")

// Status values for a tool result.
const (
	// StatusSuccess means the underlying tool completed with exit code 0.
	StatusSuccess = "SUCCESS"
	// StatusFailed means the tool failed, timed out, or was blocked.
	StatusFailed = "FAILED"
)

// Artifact types collected from tool runs.
const (
	ArtifactScreenshot = "screenshot"
	ArtifactJUnitXML   = "junitXml"
	ArtifactLog        = "log"
	ArtifactOther      = "other"
)

// Decision sources recorded in RawOutput when a call never reached the
// underlying tool.
const (
	// SourcePolicyBlock marks a call denied by the allowlist.
	SourcePolicyBlock = "policy_block"
	// SourcePolicyRule marks a call denied by a guard condition.
	SourcePolicyRule = "policy_rule"
	// SourceGovernanceShortCircuit marks a run blocked by content screening.
	SourceGovernanceShortCircuit = "governance_short_circuit"
)

// RunContext carries the request-scoped metadata for one run. It is
// passed explicitly through every call in the pipeline; nothing travels
// in ambient context values.
type RunContext struct {
	// RunID is the opaque correlation id for this run.
	RunID string
	// Actor is the identity on whose behalf the run executes.
	Actor string
	// Tenant scopes the run for multi-tenant callers (may be empty).
	Tenant string
	// GitSHA is the code revision in force when the run started.
	GitSHA string
	// PolicyHash is the hash of the policy snapshot in force.
	PolicyHash string
}

// Request names a tool and its arguments for one invocation.
// It is owned by the caller and not persisted beyond the audit and
// evidence records derived from it.
type Request struct {
	// ToolName is the registered tool to invoke.
	ToolName string `json:"toolName"`
	// Args are the JSON-serializable tool arguments.
	Args map[string]any `json:"args"`
	// RunID is the correlation id of the enclosing run.
	RunID string `json:"runId"`
	// TimeoutSeconds bounds the call; 0 means the policy default.
	TimeoutSeconds int `json:"timeoutSeconds"`
}

// Timeout returns the request timeout, falling back to def seconds.
func (r Request) Timeout(def int) time.Duration {
	secs := r.TimeoutSeconds
	if secs <= 0 {
		secs = def
	}
	return time.Duration(secs) * time.Second
}

// Artifact references one file produced by a tool run.
type Artifact struct {
	// Path is relative to the run's artifact directory.
	Path string `json:"path"`
	// Type is one of the Artifact* constants.
	Type string `json:"type"`
}

// Metrics holds execution measurements for a tool call.
type Metrics struct {
	// DurationMs is the wall-clock execution time.
	DurationMs int64 `json:"durationMs"`
	// ExitCode is the process exit code (-1 when never started).
	ExitCode int `json:"exitCode"`
}

// Result is the uniform outcome contract every handler returns.
// Constructed once by the executor (or the policy-block short-circuit)
// and immutable thereafter.
type Result struct {
	// Status is StatusSuccess or StatusFailed.
	Status string `json:"status"`
	// Stdout is the captured standard output, possibly truncated.
	Stdout string `json:"stdout"`
	// Stderr is the captured standard error, possibly truncated.
	Stderr string `json:"stderr"`
	// Artifacts are files collected from the run.
	Artifacts []Artifact `json:"artifacts,omitempty"`
	// Metrics holds duration and exit code.
	Metrics Metrics `json:"metrics"`
	// ErrorMessage explains a FAILED status.
	ErrorMessage string `json:"errorMessage,omitempty"`
	// RawOutput carries free-form handler data; a call blocked before
	// execution records its decisionSource here.
	RawOutput map[string]any `json:"rawOutput,omitempty"`
}

// Succeeded reports whether the result carries a SUCCESS status.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// DecisionSource returns the RawOutput decisionSource, or "" when the
// call reached the underlying tool.
func (r Result) DecisionSource() string {
	if r.RawOutput == nil {
		return ""
	}
	s, _ := r.RawOutput["decisionSource"].(string)
	return s
}

// BlockedResult builds the FAILED result recorded when governance
// stops a call before the handler runs.
func BlockedResult(message, source string) Result {
	return Result{
		Status:       StatusFailed,
		ErrorMessage: message,
		Metrics:      Metrics{ExitCode: -1},
		RawOutput:    map[string]any{"decisionSource": source},
	}
}
