package cli

import (
	"fmt"
	"strings"

	"github.com/alanmeadows/termbridge/internal/config"
	"github.com/alanmeadows/termbridge/internal/history"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 for all)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent exchanges with the agent",
	Long: `Display the most recent commands sent to the agent, newest first.

Every exchange from the interactive shell, one-shot runs and note runs
is recorded unless history.enabled is false.`,
	Example: `  termbridge history
  termbridge history -n 100`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appConfig.History.Path
		if path == "" {
			path = history.DefaultPath()
		}
		store, err := history.Open(config.ExpandHome(path))
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history recorded.")
			return nil
		}

		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)
		failStyle := cellStyle.Foreground(lipgloss.Color("196"))

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.StartedAt.Local().Format("2006-01-02 15:04:05"),
				e.Source,
				truncate(firstLine(e.Cmd), 40),
				e.ResultCwd,
				e.Kind,
				e.Duration.String(),
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("TIME", "SOURCE", "COMMAND", "CWD", "RESULT", "DURATION").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 4 && rows[row][4] != "success" {
					return failStyle
				}
				return cellStyle
			})

		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

func firstLine(s string) string {
	line, _, more := strings.Cut(strings.TrimSpace(s), "\n")
	if more {
		return line + " ..."
	}
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
