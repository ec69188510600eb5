package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/registrar/internal/secret"
)

var authSecretCmd = &cobra.Command{
	Use:   "auth-secret",
	Short: "Print a new random auth secret",
	Long: `Prints 32 random bytes as 64 lowercase hex characters, suitable for
REGISTRAR_AUTH_SECRET. Every run prints a different secret.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return secret.Run(cmd.OutOrStdout(), nil)
	},
}

func init() {
	rootCmd.AddCommand(authSecretCmd)
}
