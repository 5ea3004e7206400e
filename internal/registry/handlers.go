package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/proofgate/proofgate/internal/domain/policy"
	"github.com/proofgate/proofgate/internal/domain/tool"
	"github.com/proofgate/proofgate/internal/sandbox"
)

// Built-in tool names.
const (
	ToolRunPytest     = "run_pytest"
	ToolRunPlaywright = "run_playwright"
	ToolFetchLogs     = "fetch_logs"
)

// ArtifactDirFunc resolves the writable artifact directory for one
// tool invocation within a run.
type ArtifactDirFunc func(runID, toolName string) (string, error)

// SandboxTools provides the built-in handlers, all shelling through
// the sandbox executor with a uniform result contract.
type SandboxTools struct {
	exec        *sandbox.Executor
	workspace   string
	artifactDir ArtifactDirFunc
	logger      *slog.Logger
}

// NewSandboxTools creates the built-in handler set. workspace is the
// directory tools run in; artifactDir allocates per-invocation output
// directories.
func NewSandboxTools(exec *sandbox.Executor, workspace string, artifactDir ArtifactDirFunc, logger *slog.Logger) *SandboxTools {
	return &SandboxTools{
		exec:        exec,
		workspace:   workspace,
		artifactDir: artifactDir,
		logger:      logger,
	}
}

// RegisterAll registers every built-in handler on r.
func (s *SandboxTools) RegisterAll(r *Registry) {
	r.Register(ToolRunPytest, HandlerFunc(s.runPytest))
	r.Register(ToolRunPlaywright, HandlerFunc(s.runPlaywright))
	r.Register(ToolFetchLogs, HandlerFunc(s.fetchLogs))
}

func (s *SandboxTools) runPytest(ctx context.Context, inv Invocation) (tool.Result, error) {
	testPath, err := relArg(inv.Request.Args, "testPath", "tests")
	if err != nil {
		return tool.Result{}, err
	}
	outDir, err := s.artifactDir(inv.Request.RunID, ToolRunPytest)
	if err != nil {
		return tool.Result{}, err
	}

	reportPath := filepath.Join(outDir, "junit.xml")
	if containerMode(inv.Sandbox) {
		reportPath = sandbox.ContainerOutputDir + "/junit.xml"
	}

	command := []string{"python", "-m", "pytest", testPath, "-q", "--junitxml", reportPath}
	res, err := s.exec.Run(ctx, command, inv.Sandbox, s.workspace, outDir, inv.Timeout)
	if err != nil {
		return tool.Result{}, err
	}
	return s.fold(ToolRunPytest, outDir, res), nil
}

func (s *SandboxTools) runPlaywright(ctx context.Context, inv Invocation) (tool.Result, error) {
	testPath, err := relArg(inv.Request.Args, "testPath", "tests/ui")
	if err != nil {
		return tool.Result{}, err
	}
	outDir, err := s.artifactDir(inv.Request.RunID, ToolRunPlaywright)
	if err != nil {
		return tool.Result{}, err
	}

	outputBase := outDir
	if containerMode(inv.Sandbox) {
		outputBase = sandbox.ContainerOutputDir
	}

	command := []string{
		"npx", "playwright", "test", testPath,
		"--reporter=junit",
		"--output", outputBase,
	}
	res, err := s.exec.Run(ctx, command, inv.Sandbox, s.workspace, outDir, inv.Timeout)
	if err != nil {
		return tool.Result{}, err
	}

	// The junit reporter writes to stdout; persist it as an artifact so
	// the evidence bundle carries the report alongside screenshots.
	if res.Stdout != "" {
		reportPath := filepath.Join(outDir, "junit.xml")
		if werr := os.WriteFile(reportPath, []byte(res.Stdout), 0o600); werr != nil {
			s.logger.Warn("persist playwright report", "error", werr)
		}
	}
	return s.fold(ToolRunPlaywright, outDir, res), nil
}

func (s *SandboxTools) fetchLogs(ctx context.Context, inv Invocation) (tool.Result, error) {
	source, err := relArg(inv.Request.Args, "source", "")
	if err != nil {
		return tool.Result{}, err
	}
	if source == "" {
		return tool.Result{}, fmt.Errorf("%w: fetch_logs requires a source path", ErrInvalidArgument)
	}
	lines := intArg(inv.Request.Args, "lines", 200)
	outDir, err := s.artifactDir(inv.Request.RunID, ToolFetchLogs)
	if err != nil {
		return tool.Result{}, err
	}

	command := []string{"tail", "-n", strconv.Itoa(lines), source}
	res, err := s.exec.Run(ctx, command, inv.Sandbox, s.workspace, outDir, inv.Timeout)
	if err != nil {
		return tool.Result{}, err
	}

	if res.ExitCode == 0 && res.Stdout != "" {
		name := filepath.Base(source)
		if !strings.HasSuffix(name, ".log") {
			name += ".log"
		}
		if werr := os.WriteFile(filepath.Join(outDir, name), []byte(res.Stdout), 0o600); werr != nil {
			s.logger.Warn("persist fetched log", "error", werr)
		}
	}
	return s.fold(ToolFetchLogs, outDir, res), nil
}

// fold maps a sandbox execution onto the tool result contract and
// attaches everything the tool left in its output directory.
func (s *SandboxTools) fold(toolName, outDir string, res sandbox.ExecutionResult) tool.Result {
	result := tool.Result{
		Status: tool.StatusSuccess,
		Stdout: res.Stdout,
		Stderr: res.Stderr,
		Metrics: tool.Metrics{
			DurationMs: res.Duration.Milliseconds(),
			ExitCode:   res.ExitCode,
		},
	}
	if res.ExitCode != 0 {
		result.Status = tool.StatusFailed
	}
	if res.KilledByTimeout {
		result.Status = tool.StatusFailed
		result.ErrorMessage = "execution timed out"
	}
	result.Artifacts = collectArtifacts(toolName, outDir)
	return result
}

// collectArtifacts walks outDir and classifies files by extension.
// Artifact paths are recorded relative to the run directory
// (toolName/filename) so evidence stays relocatable.
func collectArtifacts(toolName, outDir string) []tool.Artifact {
	var artifacts []tool.Artifact
	_ = filepath.WalkDir(outDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(outDir, path)
		if rerr != nil {
			return nil
		}
		artifacts = append(artifacts, tool.Artifact{
			Path: filepath.Join(toolName, rel),
			Type: classifyArtifact(path),
		})
		return nil
	})
	return artifacts
}

func classifyArtifact(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return tool.ArtifactScreenshot
	case ".xml":
		return tool.ArtifactJUnitXML
	case ".log":
		return tool.ArtifactLog
	default:
		return tool.ArtifactOther
	}
}

func containerMode(cfg policy.SandboxConfig) bool {
	return cfg.Enabled && cfg.Mode == policy.ModeContainer
}

// relArg reads a string argument that must stay inside the workspace:
// absolute paths and parent traversal are caller faults.
func relArg(args map[string]any, key, def string) (string, error) {
	value := def
	if raw, ok := args[key]; ok {
		str, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArgument, key)
		}
		value = str
	}
	if value == "" {
		return "", nil
	}
	cleaned := filepath.Clean(value)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s %q escapes the workspace", ErrInvalidArgument, key, value)
	}
	return cleaned, nil
}

func intArg(args map[string]any, key string, def int) int {
	raw, ok := args[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
