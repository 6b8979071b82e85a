package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alanmeadows/termbridge/internal/dispatch"
	"github.com/alanmeadows/termbridge/internal/notes"
	"github.com/alanmeadows/termbridge/internal/orchestrator"
	"github.com/alanmeadows/termbridge/internal/protocol"
	"github.com/alanmeadows/termbridge/internal/transport"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var (
	runCwd       string
	runPaste     string
	runClipboard bool
)

func init() {
	for _, c := range []*cobra.Command{runCmd, codeCmd} {
		c.Flags().StringVar(&runCwd, "cwd", "", "Working directory on the agent")
		c.Flags().StringVar(&runPaste, "paste", "", "Insert the output into this file (at "+notes.CursorMarker+" if present)")
		c.Flags().BoolVar(&runClipboard, "clipboard", false, "Copy the output to the clipboard")
		c.MarkFlagsMutuallyExclusive("paste", "clipboard")
	}
}

var runCmd = &cobra.Command{
	Use:   "run [command...]",
	Short: "Run one command on the agent",
	Long: `Send a single command to the agent and print its output.

The command does not share state with an interactive session: it runs in
--cwd when given and in the agent's default directory otherwise. Without
arguments the command is asked for interactively.

With --paste the output is inserted into a file instead, just before the
marker ` + notes.CursorMarker + ` or at the end of the file. --clipboard
copies it to the system clipboard.`,
	Example: `  termbridge run ls -la
  termbridge run --cwd /sdcard 'du -sh *'
  termbridge run --paste notes/today.md date`,
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		if command == "" {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Command").
						Placeholder("Type command...").
						Value(&command),
				),
			)
			if err := form.Run(); err != nil {
				return fmt.Errorf("form cancelled: %w", err)
			}
		}

		orch, closeOrch := newOrchestrator(cmd.ErrOrStderr(), pasteOptions()...)
		defer closeOrch()

		res, err := orch.Run(cmd.Context(), invocation(command))
		return finish(cmd.OutOrStdout(), res, err)
	},
}

var codeCmd = &cobra.Command{
	Use:   "code <lang> [file|-]",
	Short: "Run a source file on the agent",
	Long: `Wrap a source file for its language and run it on the agent.

Interpreted languages are fed to the interpreter through a quoted
heredoc. Compiled languages are written to a temporary file, compiled,
run and removed. Source is read from stdin when the file is "-" or
omitted. See 'termbridge languages' for the supported tags.`,
	Example: `  termbridge code python script.py
  echo 'print(1+1)' | termbridge code python
  termbridge code c hello.c --cwd /data/data/com.termux/files/home`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang := args[0]
		reg := dispatch.DefaultRegistry()
		if !reg.Supports(lang) {
			return fmt.Errorf("%w: %q (see 'termbridge languages')", dispatch.ErrUnknownLanguage, lang)
		}

		src, err := readSource(cmd.InOrStdin(), args[1:])
		if err != nil {
			return err
		}

		opts := append(pasteOptions(), orchestrator.WithRegistry(reg))
		orch, closeOrch := newOrchestrator(cmd.ErrOrStderr(), opts...)
		defer closeOrch()

		res, err := orch.RunCode(cmd.Context(), lang, src, invocation(""))
		return finish(cmd.OutOrStdout(), res, err)
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the languages code blocks can be written in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, lang := range dispatch.DefaultRegistry().Languages() {
			fmt.Fprintln(cmd.OutOrStdout(), lang)
		}
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Ask the agent to restart itself",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, closeOrch := newOrchestrator(cmd.ErrOrStderr())
		defer closeOrch()

		res, err := orch.Run(cmd.Context(), orchestrator.Invocation{Command: protocol.RestartCommand})
		if err != nil {
			return err
		}
		if !res.Outcome.Reached() {
			return errCommandFailed
		}
		fmt.Fprint(cmd.OutOrStdout(), "Server restarting...\n")
		return nil
	},
}

var errCommandFailed = errors.New("command failed")

func pasteOptions() []orchestrator.Option {
	switch {
	case runPaste != "":
		return []orchestrator.Option{orchestrator.WithInserter(notes.FileInserter{Path: runPaste})}
	case runClipboard:
		cb := orchestrator.SystemClipboard{}
		if !cb.Available() {
			return nil
		}
		return []orchestrator.Option{orchestrator.WithClipboard(cb)}
	}
	return nil
}

func invocation(command string) orchestrator.Invocation {
	inv := orchestrator.Invocation{Command: command, Cwd: runCwd, Disposition: orchestrator.Display}
	if runPaste != "" || runClipboard {
		inv.Disposition = orchestrator.Paste
	}
	return inv
}

// finish prints displayed output and turns failed outcomes into a non-zero
// exit. Notices were already shown by the orchestrator.
func finish(w io.Writer, res orchestrator.Result, err error) error {
	if err != nil {
		return err
	}
	if res.Outcome.OK() {
		if res.Delivery == orchestrator.Displayed {
			io.WriteString(w, res.Outcome.Output)
		}
		if res.Delivery == orchestrator.NotDelivered {
			return errCommandFailed
		}
		return nil
	}
	if res.Outcome.Kind == transport.ApplicationError {
		io.WriteString(w, res.Outcome.Output)
	}
	return errCommandFailed
}

func readSource(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}
