package cli

import (
	"fmt"
	"strings"

	"github.com/alanmeadows/termbridge/internal/secrets"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the agent token in the OS keyring",
	Long: `Store or remove the shared secret sent in the Authorization header.

The keyring is consulted only when neither server.token,
TERMBRIDGE_TOKEN nor server.token_file provide a token.`,
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store the agent token",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) > 0 {
			token = args[0]
		} else {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Agent token").
						EchoMode(huh.EchoModePassword).
						Value(&token).
						Validate(func(s string) error {
							if strings.TrimSpace(s) == "" {
								return fmt.Errorf("token is required")
							}
							return nil
						}),
				),
			)
			if err := form.Run(); err != nil {
				return fmt.Errorf("form cancelled: %w", err)
			}
		}

		if err := secrets.NewKeyring().SetToken(strings.TrimSpace(token)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token stored in keyring.")
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the agent token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.NewKeyring().DeleteToken(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token removed from keyring.")
		return nil
	},
}
