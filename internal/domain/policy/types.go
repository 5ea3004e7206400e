// Package policy contains the governance policy document: the versioned
// configuration that controls which tools may run, under which sandbox
// constraints, and against which review thresholds.
package policy

// Sandbox execution modes.
const (
	// ModeSubprocess runs tools as isolated child processes.
	ModeSubprocess = "subprocess"
	// ModeContainer runs tools inside a container runtime (docker or podman).
	ModeContainer = "container"
)

// Network policies for container mode.
const (
	// NetworkDeny disables all network access inside the container.
	NetworkDeny = "deny"
	// NetworkAll leaves the container on the default network.
	NetworkAll = "all"
)

// Config is the immutable governance policy document.
// A Config is built once by Load and never mutated afterwards; reloads
// produce a fresh instance.
type Config struct {
	// Version identifies this policy document revision.
	Version string `yaml:"version" json:"version" validate:"required"`

	// HighRiskKeywords are case-insensitive substrings that flag request
	// content for governance short-circuit.
	HighRiskKeywords []string `yaml:"high_risk_keywords" json:"highRiskKeywords"`

	// HighRiskPatterns are regular expressions applied to request content.
	HighRiskPatterns []string `yaml:"high_risk_patterns" json:"highRiskPatterns"`

	// Tools controls which tools may execute.
	Tools ToolsConfig `yaml:"tools" json:"tools"`

	// CostGovernance bounds execution cost per tool call.
	CostGovernance CostConfig `yaml:"cost_governance" json:"costGovernance"`

	// Sandbox configures the isolation mode for tool execution.
	Sandbox SandboxConfig `yaml:"sandbox" json:"sandbox"`

	// AIReview configures the external AI review opinion and its
	// decision thresholds.
	AIReview AIReviewConfig `yaml:"ai_review" json:"aiReview"`
}

// ToolsConfig controls tool authorization.
type ToolsConfig struct {
	// Allowlist is the ordered set of tool names permitted to execute.
	// An empty allowlist means "allow all" (backward compatibility with
	// policies written before tool governance existed).
	Allowlist []string `yaml:"allowlist" json:"allowlist"`

	// Rules attach optional guard conditions to allowlisted tools.
	// A rule only ever narrows what the allowlist permits.
	Rules []RuleConfig `yaml:"rules" json:"rules" validate:"omitempty,dive"`
}

// RuleConfig is a per-tool guard condition.
type RuleConfig struct {
	// Tool is the tool name (or glob pattern) this rule applies to.
	Tool string `yaml:"tool" json:"tool" validate:"required"`

	// Condition is a CEL expression over tool_name and args that must
	// evaluate to true for the call to proceed.
	Condition string `yaml:"condition" json:"condition" validate:"required"`
}

// CostConfig bounds execution cost.
type CostConfig struct {
	// TimeoutSeconds is the default wall-clock timeout per tool call.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeoutSeconds" validate:"omitempty,min=1"`

	// MaxRetries is the number of retries the caller may attempt for
	// retryable failures. The executor itself never retries.
	MaxRetries int `yaml:"max_retries" json:"maxRetries" validate:"omitempty,min=0"`
}

// SandboxConfig configures tool isolation.
type SandboxConfig struct {
	// Enabled turns sandboxed execution on or off.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Mode selects subprocess or container isolation.
	Mode string `yaml:"mode" json:"mode" validate:"omitempty,oneof=subprocess container"`

	// Container holds container-mode settings (ignored in subprocess mode).
	Container ContainerConfig `yaml:"container" json:"container"`
}

// ContainerConfig holds container-mode settings.
type ContainerConfig struct {
	// Image is the container image tools run in.
	Image string `yaml:"image" json:"image"`

	// NetworkPolicy is "deny" (no network) or "all".
	NetworkPolicy string `yaml:"network_policy" json:"networkPolicy" validate:"omitempty,oneof=deny all"`

	// ReadonlyWorkspace bind-mounts the workspace read-only when true.
	ReadonlyWorkspace bool `yaml:"readonly_workspace" json:"readonlyWorkspace"`
}

// AIReviewConfig configures the external AI review opinion.
type AIReviewConfig struct {
	// Enabled indicates whether AI review participates in gating.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Strategy names the aggregation strategy (e.g. "weighted_average").
	Strategy string `yaml:"strategy" json:"strategy"`

	// Models lists the review models and their weights.
	Models []ModelConfig `yaml:"models" json:"models" validate:"omitempty,dive"`

	// Thresholds are the confidence cut points for the gate decision.
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`

	// Dimensions are the scored review dimensions (e.g. "correctness").
	Dimensions []string `yaml:"dimensions" json:"dimensions"`
}

// ModelConfig describes one review model.
type ModelConfig struct {
	Name        string  `yaml:"name" json:"name" validate:"required"`
	Provider    string  `yaml:"provider" json:"provider"`
	Weight      float64 `yaml:"weight" json:"weight" validate:"omitempty,min=0"`
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"omitempty,min=0"`
}

// Thresholds are the confidence cut points for the three-branch gate rule.
// PassConfidence must be >= HitlConfidence; Load rejects documents that
// violate the ordering since it would make one decision branch unreachable.
type Thresholds struct {
	// PassConfidence is the minimum review confidence for an automatic PASS.
	PassConfidence float64 `yaml:"pass_confidence" json:"passConfidence" validate:"min=0,max=1"`

	// HitlConfidence is the confidence below which the run FAILs outright.
	// Confidence in [HitlConfidence, PassConfidence) escalates to a human.
	HitlConfidence float64 `yaml:"hitl_confidence" json:"hitlConfidence" validate:"min=0,max=1"`
}

// Allows reports whether the allowlist permits the given tool name.
// An empty allowlist allows every tool.
func (t ToolsConfig) Allows(name string) bool {
	if len(t.Allowlist) == 0 {
		return true
	}
	for _, allowed := range t.Allowlist {
		if allowed == name {
			return true
		}
	}
	return false
}
