// Package gate renders the terminal PASS / FAIL / NEED_HITL verdict
// for a run by evaluating its evidence against policy thresholds.
package gate

import (
	"fmt"

	"github.com/proofgate/proofgate/internal/domain/evidence"
	"github.com/proofgate/proofgate/internal/domain/policy"
)

// Decision values.
const (
	// DecisionPass accepts the run automatically.
	DecisionPass = "PASS"
	// DecisionFail rejects the run automatically.
	DecisionFail = "FAIL"
	// DecisionNeedHITL escalates the run to human review.
	DecisionNeedHITL = "NEED_HITL"
)

// Result is the rendered verdict. Terminal: once rendered for a run it
// is logged and never revised.
type Result struct {
	// Decision is PASS, FAIL, or NEED_HITL.
	Decision string `json:"decision"`
	// Rationale explains the decision in one sentence.
	Rationale string `json:"rationale"`
	// ContributingSignals lists the facts the decision rests on.
	ContributingSignals []string `json:"contributingSignals,omitempty"`
}

// Decide evaluates evidence against thresholds. Pure function: the same
// evidence and thresholds always yield the same result. Branches apply
// in order, first match wins:
//
//  1. Any failed tool call with no AI review present -> FAIL.
//  2. AI review present: confidence >= pass -> PASS; confidence < hitl
//     -> FAIL; otherwise -> NEED_HITL.
//  3. No AI review and all tool calls succeeded -> PASS.
func Decide(ev evidence.Evidence, thresholds policy.Thresholds) Result {
	signals := []string{
		fmt.Sprintf("tool_calls=%d succeeded=%d failed=%d",
			ev.Summary.Total, ev.Summary.Succeeded, ev.Summary.Failed),
	}

	if ev.AIReview == nil {
		if ev.Summary.Failed > 0 {
			return Result{
				Decision:            DecisionFail,
				Rationale:           fmt.Sprintf("%d of %d tool calls failed and no AI review is present", ev.Summary.Failed, ev.Summary.Total),
				ContributingSignals: signals,
			}
		}
		return Result{
			Decision:            DecisionPass,
			Rationale:           "all tool calls succeeded with no AI review configured",
			ContributingSignals: signals,
		}
	}

	confidence := ev.AIReview.Confidence
	signals = append(signals, fmt.Sprintf("ai_confidence=%.3f pass>=%.3f hitl>=%.3f",
		confidence, thresholds.PassConfidence, thresholds.HitlConfidence))

	switch {
	case confidence >= thresholds.PassConfidence:
		return Result{
			Decision:            DecisionPass,
			Rationale:           fmt.Sprintf("AI review confidence %.3f meets the pass threshold %.3f", confidence, thresholds.PassConfidence),
			ContributingSignals: signals,
		}
	case confidence < thresholds.HitlConfidence:
		return Result{
			Decision:            DecisionFail,
			Rationale:           fmt.Sprintf("AI review confidence %.3f is below the fail threshold %.3f", confidence, thresholds.HitlConfidence),
			ContributingSignals: signals,
		}
	default:
		return Result{
			Decision:            DecisionNeedHITL,
			Rationale:           fmt.Sprintf("AI review confidence %.3f falls between the fail and pass thresholds", confidence),
			ContributingSignals: signals,
		}
	}
}
