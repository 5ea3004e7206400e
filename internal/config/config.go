// Package config provides the file-based configuration schema for
// proofgate. Everything runs from one YAML file plus environment
// overrides; there is no remote or database-backed configuration.
package config

import "time"

// Config is the top-level proofgate configuration.
type Config struct {
	// Server configures logging and transport behavior.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Policy locates the governance policy file.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// Sandbox configures where tool commands run.
	Sandbox SandboxConfig `yaml:"sandbox" mapstructure:"sandbox"`

	// Audit configures where audit events are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Evidence configures persisted evidence documents and artifacts.
	Evidence EvidenceConfig `yaml:"evidence" mapstructure:"evidence"`

	// Auth configures optional API key authentication.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Regress configures the golden dataset replay.
	Regress RegressConfig `yaml:"regress" mapstructure:"regress"`
}

// ServerConfig configures logging and the stdio transport.
type ServerConfig struct {
	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error". Defaults to "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Trace enables the stdout trace exporter for run spans.
	Trace bool `yaml:"trace" mapstructure:"trace"`
}

// PolicyConfig locates and tunes the policy layer.
type PolicyConfig struct {
	// Path is the policy YAML file. Defaults to "proofgate-policy.yaml".
	Path string `yaml:"path" mapstructure:"path"`

	// Watch enables hot reload on policy file changes.
	Watch bool `yaml:"watch" mapstructure:"watch"`

	// CacheSize is the screening verdict cache capacity.
	// Defaults to 1024.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`
}

// SandboxConfig configures the execution workspace.
type SandboxConfig struct {
	// Workspace is the directory tool commands run in. Defaults to ".".
	Workspace string `yaml:"workspace" mapstructure:"workspace"`
}

// AuditConfig configures audit event persistence.
type AuditConfig struct {
	// Output is where audit events are written.
	// Valid values: "stdout" or "sqlite://<absolute-path>".
	// Defaults to "stdout".
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// ChannelSize is the buffer size for the audit channel.
	// Defaults to 1000.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of events batched per write.
	// Defaults to 100.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often pending events are flushed (e.g. "1s").
	// Defaults to "1s".
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// SendTimeout is how long a recording goroutine blocks when the
	// channel is full before dropping (e.g. "100ms", "0" drops
	// immediately). Defaults to "100ms".
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`

	// WarningThreshold is the channel depth percentage (0-100) above
	// which a rate-limited warning is logged. 0 disables. Defaults to 80.
	WarningThreshold int `yaml:"warning_threshold" mapstructure:"warning_threshold" validate:"omitempty,min=0,max=100"`

	// BufferSize is the in-memory ring capacity for stdout output mode,
	// which backs audit.query. Defaults to 1000.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" validate:"omitempty,min=1"`
}

// EvidenceConfig configures evidence persistence.
type EvidenceConfig struct {
	// Root is the directory evidence documents and artifacts are
	// written under. Defaults to "./evidence".
	Root string `yaml:"root" mapstructure:"root"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	// KeyFile is the YAML file mapping key hashes to actor names.
	// Optional: when empty or missing, calls run as the system actor.
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`

	// RequireKey rejects calls that present no API key.
	RequireKey bool `yaml:"require_key" mapstructure:"require_key"`
}

// RegressConfig configures golden dataset replay.
type RegressConfig struct {
	// Dataset is the golden case YAML file. Defaults to "golden.yaml".
	Dataset string `yaml:"dataset" mapstructure:"dataset"`

	// Baseline is the stored baseline JSON file.
	// Defaults to "baseline.json".
	Baseline string `yaml:"baseline" mapstructure:"baseline"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Policy.Path == "" {
		c.Policy.Path = "proofgate-policy.yaml"
	}
	if c.Policy.CacheSize == 0 {
		c.Policy.CacheSize = 1024
	}
	if c.Sandbox.Workspace == "" {
		c.Sandbox.Workspace = "."
	}
	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "1s"
	}
	if c.Audit.SendTimeout == "" {
		c.Audit.SendTimeout = "100ms"
	}
	if c.Audit.WarningThreshold == 0 {
		c.Audit.WarningThreshold = 80
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 1000
	}
	if c.Evidence.Root == "" {
		c.Evidence.Root = "./evidence"
	}
	if c.Regress.Dataset == "" {
		c.Regress.Dataset = "golden.yaml"
	}
	if c.Regress.Baseline == "" {
		c.Regress.Baseline = "baseline.json"
	}
}

// DurationOr parses s as a duration, falling back when s is empty or
// malformed. Duration fields are validated as strings so YAML stays
// human-readable ("1s", "100ms").
func DurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
