// Package proofgate provides a Go SDK for the proofgate governance API.
//
// Proofgate executes verification tools inside a policy-gated sandbox
// and renders a PASS / FAIL / NEED_HITL decision for every run. This
// SDK speaks the newline-delimited JSON-RPC 2.0 protocol the proofgate
// server exposes on stdio, using only the Go standard library with
// zero external dependencies.
//
// Quick start:
//
//	client, err := proofgate.Spawn(ctx, "proofgate", []string{"serve"},
//	    proofgate.WithAPIKey(os.Getenv("PROOFGATE_API_KEY")))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	result, err := client.Execute(ctx, proofgate.ExecuteRequest{
//	    Intent: "run the tests",
//	})
//	if err != nil {
//	    var rpcErr *proofgate.RPCError
//	    if errors.As(err, &rpcErr) {
//	        fmt.Printf("rejected [%d]: %s\n", rpcErr.Code, rpcErr.Message)
//	    }
//	}
package proofgate

import (
	"encoding/json"
	"time"
)

// Decision is a gate verdict.
type Decision string

const (
	// DecisionPass indicates every check succeeded.
	DecisionPass Decision = "PASS"

	// DecisionFail indicates at least one check failed or was blocked.
	DecisionFail Decision = "FAIL"

	// DecisionNeedHITL indicates the run needs human review.
	DecisionNeedHITL Decision = "NEED_HITL"
)

// ExecuteRequest describes one governed run.
// Either ToolName selects the tool explicitly or Intent is resolved
// heuristically on the server.
type ExecuteRequest struct {
	// Intent is the free-text description of what to verify.
	Intent string `json:"intent,omitempty"`

	// ToolName selects the tool explicitly (overrides Intent resolution).
	ToolName string `json:"toolName,omitempty"`

	// Args are the tool arguments.
	Args map[string]any `json:"args,omitempty"`

	// Tenant scopes the run for multi-tenant callers.
	Tenant string `json:"tenant,omitempty"`

	// TimeoutSeconds overrides the policy default when positive.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`
}

// GateResult is the rendered decision for a run.
type GateResult struct {
	// Decision is PASS, FAIL, or NEED_HITL.
	Decision Decision `json:"decision"`

	// Rationale explains the decision in one sentence.
	Rationale string `json:"rationale"`

	// ContributingSignals lists the facts the decision rests on.
	ContributingSignals []string `json:"contributingSignals,omitempty"`
}

// RunResult is the outcome of one governed run.
type RunResult struct {
	// RunID identifies the run for audit queries and evidence lookup.
	RunID string `json:"runId"`

	// Decision is the gate verdict.
	Decision GateResult `json:"decision"`

	// Evidence is the full evidence document as returned by the server.
	// Kept raw so SDK consumers are not coupled to its schema.
	Evidence json.RawMessage `json:"evidence"`
}

// AuditEvent is one record from the append-only audit trail.
type AuditEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// RunID correlates the event with its run.
	RunID string `json:"runId"`

	// EventType is e.g. TOOL_STARTED, DECISION_MADE, POLICY_BLOCKED.
	EventType string `json:"eventType"`

	// Timestamp is when the event was recorded (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Actor is the identity the run was attributed to.
	Actor string `json:"actor,omitempty"`

	// ToolName is the tool involved, when the event concerns one.
	ToolName string `json:"toolName,omitempty"`

	// ArgsHash is the truncated hash of the redacted tool arguments.
	ArgsHash string `json:"argsHash,omitempty"`

	// Status carries the event outcome (tool status or decision).
	Status string `json:"status,omitempty"`

	// DurationMs is the tool call duration, when applicable.
	DurationMs int64 `json:"durationMs,omitempty"`

	// PolicyHash attributes the event to the exact policy in force.
	PolicyHash string `json:"policyHash,omitempty"`

	// GitSHA attributes the event to the exact code revision in force.
	GitSHA string `json:"gitSha,omitempty"`

	// DecisionSource names what stopped the call, for blocked events.
	DecisionSource string `json:"decisionSource,omitempty"`

	// Details holds event-specific structured data.
	Details map[string]any `json:"details,omitempty"`
}
