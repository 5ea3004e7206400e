package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/proofgate/proofgate/internal/config"
	"github.com/proofgate/proofgate/internal/domain/gate"
	"github.com/proofgate/proofgate/internal/service"
)

var (
	runIntent  string
	runTool    string
	runArgs    string
	runTenant  string
	runTimeout int
	runAPIKey  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one governed run and print the decision",
	Long: `Execute a single governed run: the request is screened, executed in
the sandbox under the active policy, and the evidence plus decision is
printed to stdout as JSON.

Exit codes: 0 PASS, 1 FAIL, 2 NEED_HITL.

Examples:
  proofgate run --intent "run the tests"
  proofgate run --tool run_playwright --args '{"testPath":"tests/ui"}'`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runIntent, "intent", "", "free-text description of what to verify")
	runCmd.Flags().StringVar(&runTool, "tool", "", "tool name (overrides intent resolution)")
	runCmd.Flags().StringVar(&runArgs, "args", "", "tool arguments as a JSON object")
	runCmd.Flags().StringVar(&runTenant, "tenant", "", "tenant the run is scoped to")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "timeout in seconds (overrides the policy default)")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "API key resolving the acting identity")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, cmdArgs []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	var args map[string]any
	if runArgs != "" {
		if err := json.Unmarshal([]byte(runArgs), &args); err != nil {
			return fmt.Errorf("--args must be a JSON object: %w", err)
		}
	}

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	result, err := executeOnce(ctx, p, service.RunRequest{
		Intent:         runIntent,
		ToolName:       runTool,
		Args:           args,
		Tenant:         runTenant,
		TimeoutSeconds: runTimeout,
	})
	p.Close(context.Background())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))

	switch result.Decision.Decision {
	case gate.DecisionPass:
		return nil
	case gate.DecisionNeedHITL:
		os.Exit(2)
	default:
		os.Exit(1)
	}
	return nil
}

// executeOnce resolves the actor and runs the request through the
// pipeline.
func executeOnce(ctx context.Context, p *pipeline, req service.RunRequest) (service.RunResult, error) {
	actor, err := p.keyring.ResolveActor(runAPIKey)
	if err != nil {
		return service.RunResult{}, fmt.Errorf("resolve actor: %w", err)
	}
	req.Actor = actor
	return p.runner.Execute(ctx, req)
}
