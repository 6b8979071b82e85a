package cli

import (
	"fmt"
	"strings"

	"github.com/alanmeadows/termbridge/internal/dispatch"
	"github.com/alanmeadows/termbridge/internal/notes"
	"github.com/alanmeadows/termbridge/internal/orchestrator"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Work with code blocks in Markdown notes",
}

var (
	notesBlocks []int
	notesWrite  bool
	notesCwd    string
)

func init() {
	notesRunCmd.Flags().IntSliceVar(&notesBlocks, "block", nil, "Run only these blocks (0-based, repeatable)")
	notesRunCmd.Flags().BoolVar(&notesWrite, "write", false, "Write each block's output into the note")
	notesRunCmd.Flags().StringVar(&notesCwd, "cwd", "", "Working directory on the agent (overrides termbridge_cwd)")
	notesCmd.AddCommand(notesRunCmd)
	notesCmd.AddCommand(notesListCmd)
}

var blockHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

var notesRunCmd = &cobra.Command{
	Use:   "run <file.md>",
	Short: "Run the fenced code blocks of a note",
	Long: `Run every top-level fenced code block whose language is supported, in
document order, each as a separate one-shot command.

The note's frontmatter key termbridge_cwd sets the working directory.
With --write the output of each block that reached the agent is stored
in an ` + "```output" + ` block right after it, replacing the previous one, and
termbridge_last_run is updated. The note is not written if it changed
while the blocks were running.`,
	Example: `  termbridge notes run scratch.md
  termbridge notes run scratch.md --block 2 --write`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := dispatch.DefaultRegistry()
		orch, closeOrch := newOrchestrator(cmd.ErrOrStderr(), orchestrator.WithRegistry(reg))
		defer closeOrch()

		runner := notes.NewRunner(orch, reg.Supports)
		results, err := runner.Run(cmd.Context(), args[0], notes.RunOptions{
			Blocks: notesBlocks,
			Cwd:    notesCwd,
			Write:  notesWrite,
		})

		out := cmd.OutOrStdout()
		failed := 0
		for _, r := range results {
			fmt.Fprintln(out, blockHeaderStyle.Render(fmt.Sprintf("[%d] %s", r.Block.Index, r.Block.Lang)))
			fmt.Fprint(out, r.Outcome.Text())
			if t := r.Outcome.Text(); t != "" && !strings.HasSuffix(t, "\n") {
				fmt.Fprintln(out)
			}
			if !r.Outcome.OK() {
				failed++
			}
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No runnable code blocks found.")
			return nil
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d blocks failed", failed, len(results))
		}
		return nil
	},
}

var notesListCmd = &cobra.Command{
	Use:   "list <file.md>",
	Short: "List the runnable code blocks of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		note, err := notes.Load(args[0], dispatch.DefaultRegistry().Supports)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, b := range note.Blocks {
			first, _, _ := strings.Cut(strings.TrimSpace(b.Code), "\n")
			status := ""
			if b.Output != nil {
				status = " (has output)"
			}
			fmt.Fprintf(out, "%s %s%s\n", blockHeaderStyle.Render(fmt.Sprintf("[%d] %s", b.Index, b.Lang)), first, status)
		}
		return nil
	},
}
