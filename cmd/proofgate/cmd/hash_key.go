package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/proofgate/proofgate/internal/domain/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate an Argon2id hash for an API key",
	Long: `Generate an Argon2id hash of an API key for the key file.

The output is a PHC string usable directly as a key_hash value:

  - key_hash: "$argon2id$..."
    actor: ci-bot

Security note: the key will appear in shell history. Prefer passing it
through an environment variable:
  proofgate hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashKey(args[0])
		if err != nil {
			return fmt.Errorf("hash key: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
