package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrPolicyLoad is the sentinel wrapped by all policy load failures.
// Malformed documents and schema violations are configuration errors:
// fatal at load time, never silently defaulted.
var ErrPolicyLoad = errors.New("policy load failed")

// Documented defaults applied to fields absent from the policy document.
const (
	// DefaultTimeoutSeconds is the per-call wall-clock timeout.
	DefaultTimeoutSeconds = 300
	// DefaultMaxRetries is the caller-side retry budget.
	DefaultMaxRetries = 2
	// DefaultContainerImage is the image used when none is configured.
	DefaultContainerImage = "python:3.11-slim"
)

// Load reads, parses, defaults, and validates a policy document.
// Every failure is wrapped in ErrPolicyLoad so callers can distinguish
// configuration errors from runtime ones with errors.Is.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPolicyLoad, path, err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes. See Load.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %w", ErrPolicyLoad, err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyLoad, err)
	}
	return &cfg, nil
}

// setDefaults fills documented defaults for optional fields.
func (c *Config) setDefaults() {
	if c.CostGovernance.TimeoutSeconds == 0 {
		c.CostGovernance.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.CostGovernance.MaxRetries == 0 {
		c.CostGovernance.MaxRetries = DefaultMaxRetries
	}
	if c.Sandbox.Mode == "" {
		c.Sandbox.Mode = ModeSubprocess
	}
	if c.Sandbox.Container.Image == "" {
		c.Sandbox.Container.Image = DefaultContainerImage
	}
	if c.Sandbox.Container.NetworkPolicy == "" {
		c.Sandbox.Container.NetworkPolicy = NetworkDeny
	}
}

// compilePatterns verifies every high-risk pattern is a valid regexp.
func (c *Config) compilePatterns() error {
	for _, p := range c.HighRiskPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("high_risk_patterns: %q: %w", p, err)
		}
	}
	return nil
}
