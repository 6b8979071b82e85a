package cli

import (
	"fmt"

	"github.com/alanmeadows/termbridge/internal/config"
	"github.com/alanmeadows/termbridge/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	appConfig  *config.Config

	rootCmd = &cobra.Command{
		Use:   "termbridge",
		Short: "Run shell commands and code blocks on a Termux agent",
		Long: `termbridge sends shell commands to an HTTP agent running inside Termux
on an Android device and shows what they print.

It keeps an interactive session whose working directory follows the
agent, runs one-shot commands whose output can be pasted into a file or
the clipboard, and executes the fenced code blocks of Markdown notes.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Use this config file instead of the user and project layers")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose)
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		appConfig = cfg
		return nil
	}

	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tokenCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
