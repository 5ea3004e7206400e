// Package cmd provides the CLI commands for proofgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proofgate/proofgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "proofgate",
	Short: "proofgate - governed tool execution for AI agents",
	Long: `Proofgate executes verification tools inside a policy-gated sandbox,
records an append-only audit trail, collects evidence, and renders a
PASS / FAIL / NEED_HITL decision for every run.

Quick start:
  1. Write a policy file: proofgate-policy.yaml
  2. Run a single check: proofgate run --intent "run the tests"
  3. Or serve JSON-RPC over stdio: proofgate serve

Configuration:
  Config is loaded from proofgate.yaml in the current directory,
  $HOME/.proofgate/, or /etc/proofgate/.

  Environment variables can override config values with the PROOFGATE_
  prefix. Example: PROOFGATE_POLICY_PATH=/etc/proofgate/policy.yaml

Commands:
  run         Execute one governed run and print the decision
  serve       Serve run.execute / audit.query over stdio JSON-RPC
  replay      Replay the golden dataset and diff against the baseline
  hash-key    Generate an Argon2id hash for an API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./proofgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
