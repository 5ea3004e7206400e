package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/proofgate/proofgate/internal/config"
	"github.com/proofgate/proofgate/internal/regress"
)

var (
	replayDataset  string
	replayBaseline string
	replayUpdate   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the golden dataset and diff against the baseline",
	Long: `Replay every golden case through the full run pipeline and compare
the rendered decisions against the stored baseline.

Without --update, the diff report is printed to stdout and the command
exits 1 when any case regressed (passed in the baseline, fails now).
With --update, the current results replace the baseline instead.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayDataset, "dataset", "", "golden dataset file (default: from config)")
	replayCmd.Flags().StringVar(&replayBaseline, "baseline", "", "baseline file (default: from config)")
	replayCmd.Flags().BoolVar(&replayUpdate, "update", false, "save current results as the new baseline")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	datasetPath := replayDataset
	if datasetPath == "" {
		datasetPath = cfg.Regress.Dataset
	}
	baselinePath := replayBaseline
	if baselinePath == "" {
		baselinePath = cfg.Regress.Baseline
	}

	ds, err := regress.LoadDataset(datasetPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	harness := regress.NewHarness(p.runner, logger)
	results := harness.RunAll(ctx, ds)
	gitSHA := p.runner.GitSHA()
	p.Close(context.Background())

	if replayUpdate {
		baseline := regress.NewBaseline(ds.Name, gitSHA, results)
		if err := baseline.Save(baselinePath); err != nil {
			return err
		}
		logger.Info("baseline updated", "path", baselinePath, "cases", len(results))
		return nil
	}

	baseline, err := regress.LoadBaseline(baselinePath)
	if err != nil {
		return fmt.Errorf("no usable baseline (run with --update first): %w", err)
	}

	report := regress.GenerateDiff(baseline.Results, results)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Println(string(out))

	if report.Regressions > 0 {
		logger.Error("replay found regressions",
			"regressions", report.Regressions,
			"baseline", baseline.Name,
			"baseline_git_sha", baseline.GitSHA,
		)
		os.Exit(1)
	}
	return nil
}
