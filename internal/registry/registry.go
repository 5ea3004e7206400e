// Package registry maps tool names to handlers and gates every
// execution through the active policy. The registry is the single
// choke point: no handler runs without a decision, and every attempt
// leaves an audit trail.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/proofgate/proofgate/internal/domain/audit"
	"github.com/proofgate/proofgate/internal/domain/policy"
	"github.com/proofgate/proofgate/internal/domain/tool"
)

// maxDisplayOutput caps stdout/stderr carried on results and into
// evidence. The sandbox captures more; everything past this point is
// summarized by a truncation marker.
const maxDisplayOutput = 10_000

// ErrInvalidArgument is returned when a handler rejects its arguments
// (for example a test path escaping the workspace). This is a caller
// fault, distinct from tool failure.
var ErrInvalidArgument = errors.New("invalid argument")

// Decision is the policy verdict for one execution attempt.
type Decision struct {
	Allowed bool
	// Reason is the human-readable block explanation (empty when allowed).
	Reason string
	// Source tags which mechanism blocked (tool.SourcePolicyBlock or
	// tool.SourcePolicyRule).
	Source string
}

// Snapshot is the registry's view of the active policy. A nil Snapshot
// allows everything and runs handlers unsandboxed with the default
// timeout.
type Snapshot interface {
	// Decide gates one execution attempt.
	Decide(ctx context.Context, rc tool.RunContext, req tool.Request) Decision
	// Sandbox returns the sandbox configuration handlers must run under.
	Sandbox() policy.SandboxConfig
	// TimeoutSeconds is the per-call timeout when the request carries none.
	TimeoutSeconds() int
}

// Invocation carries everything a handler needs for one execution.
type Invocation struct {
	Context tool.RunContext
	Request tool.Request
	Sandbox policy.SandboxConfig
	Timeout time.Duration
}

// Handler executes one tool call. Expected tool-level failures travel
// in the result; returned errors are reserved for environment and
// caller faults.
type Handler interface {
	Run(ctx context.Context, inv Invocation) (tool.Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv Invocation) (tool.Result, error)

func (f HandlerFunc) Run(ctx context.Context, inv Invocation) (tool.Result, error) {
	return f(ctx, inv)
}

// Registry dispatches tool calls through policy and audit.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	recorder audit.Recorder
	logger   *slog.Logger
}

// New creates a registry. recorder may be nil (no audit emission,
// used by the regression harness).
func New(recorder audit.Recorder, logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		recorder: recorder,
		logger:   logger,
	}
}

// Register binds name to handler, replacing any previous binding.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Execute runs one tool call under the given policy snapshot.
//
// A policy block is an expected outcome: the handler is never invoked,
// a POLICY_BLOCKED event is emitted, and a FAILED result tagged with
// the decision source is returned with a nil error. Unknown tools
// return tool.ErrNotFound.
func (r *Registry) Execute(ctx context.Context, rc tool.RunContext, req tool.Request, snap Snapshot) (tool.Result, error) {
	r.mu.RLock()
	handler, ok := r.handlers[req.ToolName]
	r.mu.RUnlock()
	if !ok {
		return tool.Result{}, fmt.Errorf("tool %q: %w", req.ToolName, tool.ErrNotFound)
	}

	inv := Invocation{
		Context: rc,
		Request: req,
		Timeout: req.Timeout(policy.DefaultTimeoutSeconds),
	}
	if snap != nil {
		if d := snap.Decide(ctx, rc, req); !d.Allowed {
			r.logger.Warn("tool blocked by policy",
				"tool", req.ToolName, "run_id", rc.RunID, "source", d.Source, "reason", d.Reason)
			r.emit(ctx, audit.EventPolicyBlocked, rc, req, func(ev *audit.Event) {
				ev.Status = tool.StatusFailed
				ev.DecisionSource = d.Source
				ev.Details = map[string]any{"reason": d.Reason}
			})
			return tool.BlockedResult(d.Reason, d.Source), nil
		}
		inv.Sandbox = snap.Sandbox()
		inv.Timeout = req.Timeout(snap.TimeoutSeconds())
	}

	r.emit(ctx, audit.EventToolStarted, rc, req, nil)

	start := time.Now()
	result, err := handler.Run(ctx, inv)
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		r.emit(ctx, audit.EventToolFinished, rc, req, func(ev *audit.Event) {
			ev.Status = tool.StatusFailed
			ev.DurationMs = durationMs
			ev.Details = map[string]any{"error": err.Error()}
		})
		return tool.Result{}, fmt.Errorf("tool %q: %w", req.ToolName, err)
	}

	if result.Metrics.DurationMs == 0 {
		result.Metrics.DurationMs = durationMs
	}
	result.Stdout = truncateOutput(result.Stdout)
	result.Stderr = truncateOutput(result.Stderr)

	r.emit(ctx, audit.EventToolFinished, rc, req, func(ev *audit.Event) {
		ev.Status = result.Status
		ev.DurationMs = result.Metrics.DurationMs
	})
	return result, nil
}

// emit records an audit event when a recorder is wired.
func (r *Registry) emit(ctx context.Context, eventType string, rc tool.RunContext, req tool.Request, customize func(*audit.Event)) {
	if r.recorder == nil {
		return
	}
	ev := audit.NewEvent(eventType, rc.RunID, rc.Actor)
	ev.ToolName = req.ToolName
	ev.ArgsHash = audit.HashArgs(req.Args)
	ev.PolicyHash = rc.PolicyHash
	ev.GitSHA = rc.GitSHA
	if customize != nil {
		customize(&ev)
	}
	r.recorder.Record(ctx, ev)
}

// truncateOutput caps s at maxDisplayOutput characters, appending a
// marker that names the original length.
func truncateOutput(s string) string {
	if len(s) <= maxDisplayOutput {
		return s
	}
	return s[:maxDisplayOutput] + fmt.Sprintf("...[truncated, total %d chars]", len(s))
}
