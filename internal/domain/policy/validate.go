package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the policy document against struct tags and
// cross-field rules. Structural fields are never silently defaulted:
// a violation fails the load.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Threshold ordering: pass >= hitl, otherwise the NEED_HITL branch
	// (or the PASS branch) of the gate rule becomes unreachable.
	if c.AIReview.Thresholds.PassConfidence < c.AIReview.Thresholds.HitlConfidence {
		return fmt.Errorf("ai_review.thresholds: pass_confidence (%.2f) must be >= hitl_confidence (%.2f)",
			c.AIReview.Thresholds.PassConfidence, c.AIReview.Thresholds.HitlConfidence)
	}

	if err := c.compilePatterns(); err != nil {
		return err
	}

	// Rules must reference allowlisted tools when an allowlist exists;
	// a rule on a blocked tool is dead configuration worth rejecting.
	if len(c.Tools.Allowlist) > 0 {
		for i, r := range c.Tools.Rules {
			if !containsGlobTarget(c.Tools.Allowlist, r.Tool) {
				return fmt.Errorf("tools.rules[%d]: tool %q is not in the allowlist", i, r.Tool)
			}
		}
	}

	return nil
}

// containsGlobTarget reports whether any allowlist entry could match the
// rule target. Exact names must appear verbatim; glob rule targets are
// accepted as-is since they are narrowed at evaluation time.
func containsGlobTarget(allowlist []string, target string) bool {
	if strings.ContainsAny(target, "*?[") {
		return true
	}
	for _, name := range allowlist {
		if name == target {
			return true
		}
	}
	return false
}

// formatValidationErrors converts validator.ValidationErrors into
// actionable operator-facing messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
