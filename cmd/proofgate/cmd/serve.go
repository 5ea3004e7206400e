package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/proofgate/proofgate/internal/adapter/inbound/stdio"
	"github.com/proofgate/proofgate/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run.execute / audit.query over stdio JSON-RPC",
	Long: `Serve the governance API as newline-delimited JSON-RPC 2.0 on
stdin/stdout. Logs go to stderr; stdout carries only the RPC stream.

Exposed methods:
  run.execute   execute one governed run, returns the decision and evidence
  audit.query   return the audit events for a run id`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// stop() restores default signal handling so a second Ctrl+C does a
	// hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close(context.Background())

	if cfg.Policy.Watch {
		if err := p.policies.Watch(); err != nil {
			return fmt.Errorf("watch policy file: %w", err)
		}
	}

	var opts []stdio.Option
	if cfg.Auth.RequireKey {
		opts = append(opts, stdio.WithAuthRequired())
	}
	server := stdio.NewServer(p.runner, p.store, p.keyring, logger, opts...)

	logger.Info("proofgate serving on stdio",
		"policy", cfg.Policy.Path,
		"audit", cfg.Audit.Output,
		"workspace", cfg.Sandbox.Workspace,
	)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("proofgate stopped")
	return nil
}
