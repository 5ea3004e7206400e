package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/proofgate/proofgate/internal/domain/audit"
	"github.com/proofgate/proofgate/internal/domain/auth"
	"github.com/proofgate/proofgate/internal/domain/evidence"
	"github.com/proofgate/proofgate/internal/domain/gate"
	"github.com/proofgate/proofgate/internal/domain/policy"
	"github.com/proofgate/proofgate/internal/domain/tool"
	"github.com/proofgate/proofgate/internal/metrics"
	"github.com/proofgate/proofgate/internal/registry"
)

const tracerName = "github.com/proofgate/proofgate/internal/service"

// EvidenceStore persists evidence bundles for completed runs.
type EvidenceStore interface {
	Save(ev evidence.Evidence) error
}

// RunRequest describes one governed run. Either ToolName is set
// explicitly or Intent is resolved heuristically.
type RunRequest struct {
	// Intent is the free-text description of what to verify.
	Intent string `json:"intent,omitempty"`
	// ToolName selects the tool explicitly (overrides Intent resolution).
	ToolName string `json:"toolName,omitempty"`
	// Args are the tool arguments.
	Args map[string]any `json:"args,omitempty"`
	// Actor is the resolved caller identity ("" means system).
	Actor string `json:"actor,omitempty"`
	// Tenant scopes the run for multi-tenant callers.
	Tenant string `json:"tenant,omitempty"`
	// TimeoutSeconds overrides the policy default when positive.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`
	// Review is the externally-produced AI review opinion, when one
	// exists. The pipeline never calls a model itself.
	Review *evidence.AIReview `json:"review,omitempty"`
}

// RunResult is the outcome of one governed run.
type RunResult struct {
	RunID    string            `json:"runId"`
	Decision gate.Result       `json:"decision"`
	Evidence evidence.Evidence `json:"evidence"`
}

// Runner orchestrates one run end to end: resolve the request, screen
// its content, execute through the registry, fold evidence, render the
// gate decision, and persist. Every run yields evidence and a
// decision, including blocked and failed ones.
type Runner struct {
	policies *PolicyService
	registry *registry.Registry
	recorder audit.Recorder
	store    EvidenceStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer

	workspace string
	gitSHA    string
}

// NewRunner wires the pipeline. metrics may be nil (no instrumentation).
func NewRunner(policies *PolicyService, reg *registry.Registry, recorder audit.Recorder, store EvidenceStore, m *metrics.Metrics, workspace string, logger *slog.Logger) *Runner {
	return &Runner{
		policies:  policies,
		registry:  reg,
		recorder:  recorder,
		store:     store,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		workspace: workspace,
		gitSHA:    resolveGitSHA(workspace),
	}
}

// GitSHA returns the workspace revision resolved at construction.
// Baselines are stamped with it.
func (r *Runner) GitSHA() string {
	return r.gitSHA
}

// Execute runs one governed request. Returned errors are configuration
// or environment faults; governance outcomes (blocked, failed, timed
// out) arrive as the decision inside RunResult.
func (r *Runner) Execute(ctx context.Context, req RunRequest) (RunResult, error) {
	runID := uuid.NewString()
	snap := r.policies.Current()

	actor := req.Actor
	if actor == "" {
		actor = auth.SystemActor
	}
	rc := tool.RunContext{
		RunID:      runID,
		Actor:      actor,
		Tenant:     req.Tenant,
		GitSHA:     r.gitSHA,
		PolicyHash: snap.Hash,
	}

	ctx, span := r.tracer.Start(ctx, "run.execute", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.actor", actor),
		attribute.String("policy.hash", snap.Hash),
	))
	defer span.End()

	toolReq := r.resolveRequest(runID, req)
	span.SetAttributes(attribute.String("tool.name", toolReq.ToolName))

	collector := evidence.NewCollector(runID, describeInput(req, toolReq))
	collector.SetEnvironment("sandbox_mode", snap.Config.Sandbox.Mode)
	if snap.Config.Sandbox.Enabled && snap.Config.Sandbox.Mode == policy.ModeContainer {
		collector.SetEnvironment("container_image", snap.Config.Sandbox.Container.Image)
		collector.SetEnvironment("network_policy", snap.Config.Sandbox.Container.NetworkPolicy)
	}

	if blocked := r.screen(ctx, rc, toolReq, collector); !blocked {
		result, err := r.executeTool(ctx, rc, toolReq, snap)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tool execution failed")
			return RunResult{}, err
		}
		collector.AddToolResult(toolReq.ToolName, result)
	}

	if req.Review != nil && snap.Config.AIReview.Enabled {
		collector.SetAIReview(*req.Review)
	}

	ev := collector.Collect(evidence.Repro{
		GitSHA:          r.gitSHA,
		PolicyHash:      snap.Hash,
		DepsFingerprint: depsFingerprint(r.workspace),
	})

	decision := r.decide(ctx, rc, ev, snap)
	ev.Decision = decision.Decision

	if err := r.persist(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evidence persistence failed")
		return RunResult{}, err
	}

	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues(decision.Decision).Inc()
	}
	span.SetAttributes(attribute.String("run.decision", decision.Decision))

	r.logger.Info("run complete",
		"run_id", runID,
		"tool", toolReq.ToolName,
		"decision", decision.Decision,
		"policy_hash", snap.Hash,
	)
	return RunResult{RunID: runID, Decision: decision, Evidence: ev}, nil
}

// screen checks the request content against the policy's high-risk
// keywords and patterns. A flagged request short-circuits the run: the
// tool never executes, a FAILED result is recorded instead.
func (r *Runner) screen(ctx context.Context, rc tool.RunContext, toolReq tool.Request, collector *evidence.Collector) bool {
	_, span := r.tracer.Start(ctx, "run.screen")
	defer span.End()

	sr := r.policies.ScreenContent(screenableContent(toolReq))
	if !sr.Flagged {
		return false
	}

	span.SetAttributes(attribute.String("screen.reason", sr.Reason))
	r.logger.Warn("run short-circuited by content screening",
		"run_id", rc.RunID, "reason", sr.Reason)

	if r.recorder != nil {
		ev := audit.NewEvent(audit.EventGovernanceShortCircuit, rc.RunID, rc.Actor)
		ev.ToolName = toolReq.ToolName
		ev.ArgsHash = audit.HashArgs(toolReq.Args)
		ev.PolicyHash = rc.PolicyHash
		ev.GitSHA = rc.GitSHA
		ev.DecisionSource = tool.SourceGovernanceShortCircuit
		ev.Details = map[string]any{"reason": sr.Reason}
		r.recorder.Record(ctx, ev)
	}
	if r.metrics != nil {
		r.metrics.BlockedCallsTotal.WithLabelValues(tool.SourceGovernanceShortCircuit).Inc()
	}

	collector.AddToolResult(toolReq.ToolName,
		tool.BlockedResult(sr.Reason, tool.SourceGovernanceShortCircuit))
	return true
}

// executeTool runs the registry call inside its own span and updates
// tool-level metrics.
func (r *Runner) executeTool(ctx context.Context, rc tool.RunContext, toolReq tool.Request, snap *Snapshot) (tool.Result, error) {
	ctx, span := r.tracer.Start(ctx, "run.tool", trace.WithAttributes(
		attribute.String("tool.name", toolReq.ToolName),
	))
	defer span.End()

	result, err := r.registry.Execute(ctx, rc, toolReq, snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry execute failed")
		return tool.Result{}, err
	}

	span.SetAttributes(
		attribute.String("tool.status", result.Status),
		attribute.Int64("tool.duration_ms", result.Metrics.DurationMs),
	)
	if r.metrics != nil {
		r.metrics.ToolCallsTotal.WithLabelValues(toolReq.ToolName, result.Status).Inc()
		r.metrics.ToolDurationSeconds.WithLabelValues(toolReq.ToolName).
			Observe(float64(result.Metrics.DurationMs) / 1000)
		if source := result.DecisionSource(); source != "" {
			r.metrics.BlockedCallsTotal.WithLabelValues(source).Inc()
		}
	}
	return result, nil
}

// decide renders the gate verdict and emits exactly one DECISION_MADE
// event per run.
func (r *Runner) decide(ctx context.Context, rc tool.RunContext, ev evidence.Evidence, snap *Snapshot) gate.Result {
	_, span := r.tracer.Start(ctx, "run.decide")
	defer span.End()

	decision := gate.Decide(ev, snap.Config.AIReview.Thresholds)
	span.SetAttributes(attribute.String("gate.decision", decision.Decision))

	if r.recorder != nil {
		event := audit.NewEvent(audit.EventDecisionMade, rc.RunID, rc.Actor)
		event.Status = decision.Decision
		event.PolicyHash = rc.PolicyHash
		event.GitSHA = rc.GitSHA
		event.Details = map[string]any{
			"rationale": decision.Rationale,
			"signals":   decision.ContributingSignals,
		}
		r.recorder.Record(ctx, event)
	}
	return decision
}

// persist saves the evidence bundle.
func (r *Runner) persist(ctx context.Context, ev evidence.Evidence) error {
	_, span := r.tracer.Start(ctx, "run.persist")
	defer span.End()

	if r.store == nil {
		return nil
	}
	if err := r.store.Save(ev); err != nil {
		return fmt.Errorf("persist evidence for run %s: %w", ev.RunID, err)
	}
	return nil
}

// resolveRequest maps a RunRequest onto a concrete tool request.
// An explicit tool name wins; otherwise a keyword heuristic picks the
// tool from the free-text intent.
func (r *Runner) resolveRequest(runID string, req RunRequest) tool.Request {
	toolReq := tool.Request{
		ToolName:       req.ToolName,
		Args:           req.Args,
		RunID:          runID,
		TimeoutSeconds: req.TimeoutSeconds,
	}
	if toolReq.ToolName != "" {
		return toolReq
	}

	if strings.Contains(strings.ToLower(req.Intent), "playwright") {
		toolReq.ToolName = registry.ToolRunPlaywright
		if toolReq.Args == nil {
			toolReq.Args = map[string]any{"testPath": "tests/ui"}
		}
		return toolReq
	}
	toolReq.ToolName = registry.ToolRunPytest
	if toolReq.Args == nil {
		toolReq.Args = map[string]any{"testPath": "tests"}
	}
	return toolReq
}

// describeInput renders the evidence input description.
func describeInput(req RunRequest, toolReq tool.Request) string {
	if req.Intent != "" {
		return req.Intent
	}
	return fmt.Sprintf("execute %s", toolReq.ToolName)
}

// screenableContent is the text screening runs against: the tool name
// plus the canonical JSON of its arguments.
func screenableContent(req tool.Request) string {
	var sb strings.Builder
	sb.WriteString(req.ToolName)
	if len(req.Args) > 0 {
		if raw, err := json.Marshal(req.Args); err == nil {
			sb.WriteByte(' ')
			sb.Write(raw)
		}
	}
	return sb.String()
}

// resolveGitSHA reads the current commit from the workspace's .git
// directory. Best effort: an empty string means "not a git checkout".
func resolveGitSHA(workspace string) string {
	head, err := os.ReadFile(filepath.Join(workspace, ".git", "HEAD"))
	if err != nil {
		return ""
	}
	content := strings.TrimSpace(string(head))
	if !strings.HasPrefix(content, "ref: ") {
		return content // detached HEAD holds the sha directly
	}
	refPath := strings.TrimPrefix(content, "ref: ")
	sha, err := os.ReadFile(filepath.Join(workspace, ".git", filepath.FromSlash(refPath)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(sha))
}

// depsFingerprint hashes the dependency lockfile so evidence records
// the exact dependency set. go.sum is preferred; go.mod is the
// fallback; "" means neither exists.
func depsFingerprint(workspace string) string {
	for _, name := range []string{"go.sum", "go.mod"} {
		data, err := os.ReadFile(filepath.Join(workspace, name))
		if err != nil {
			continue
		}
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])[:16]
	}
	return ""
}
