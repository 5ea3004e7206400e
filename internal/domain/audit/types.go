// Package audit contains the append-only audit event model. The audit
// trail is the system of record for what happened during a run,
// independent of any derived summary.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType values for audit events.
const (
	// EventToolStarted records a tool call entering execution.
	EventToolStarted = "TOOL_STARTED"
	// EventToolFinished records a tool call completing (any status).
	EventToolFinished = "TOOL_FINISHED"
	// EventDecisionMade records the gate verdict for a run.
	EventDecisionMade = "DECISION_MADE"
	// EventPolicyBlocked records a call denied before execution.
	EventPolicyBlocked = "POLICY_BLOCKED"
	// EventGovernanceShortCircuit records a run stopped by content screening.
	EventGovernanceShortCircuit = "GOVERNANCE_SHORT_CIRCUIT"
)

// Event is a single audit record. Events for a run are appended in
// timestamp order and never mutated or deleted.
type Event struct {
	// ID uniquely identifies this event.
	ID string `json:"id"`
	// RunID correlates the event with its run.
	RunID string `json:"runId"`
	// Timestamp is when the event occurred (UTC).
	Timestamp time.Time `json:"timestamp"`
	// EventType is one of the Event* constants.
	EventType string `json:"eventType"`
	// Actor is the identity the event is attributed to.
	Actor string `json:"actor"`
	// ToolName is set for tool-related events.
	ToolName string `json:"toolName,omitempty"`
	// ArgsHash is the truncated SHA-256 of the redacted canonical args.
	ArgsHash string `json:"argsHash,omitempty"`
	// Status is the tool or decision outcome, when applicable.
	Status string `json:"status,omitempty"`
	// DurationMs is the tool call duration, when applicable.
	DurationMs int64 `json:"durationMs,omitempty"`
	// PolicyHash attributes the event to the exact policy in force.
	PolicyHash string `json:"policyHash,omitempty"`
	// GitSHA attributes the event to the exact code revision in force.
	GitSHA string `json:"gitSha,omitempty"`
	// DecisionSource distinguishes governance short-circuits from
	// ordinary execution outcomes.
	DecisionSource string `json:"decisionSource,omitempty"`
	// Details carries opaque event-specific data (already redacted).
	Details map[string]any `json:"details,omitempty"`
}

// NewEvent builds an event with a fresh id and UTC timestamp, stamping
// run correlation metadata from the run context fields given.
func NewEvent(eventType, runID, actor string) Event {
	return Event{
		ID:        uuid.NewString(),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Actor:     actor,
	}
}
