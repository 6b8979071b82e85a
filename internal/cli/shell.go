package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanmeadows/termbridge/internal/notes"
	"github.com/alanmeadows/termbridge/internal/protocol"
	"github.com/alanmeadows/termbridge/internal/render"
	"github.com/alanmeadows/termbridge/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// Banner is shown when an interactive session opens.
const Banner = "Termux Bridge Connected.\nType 'restart' to restart the agent, 'clear' to clear the screen, or any shell command.\n"

var shellSave string

func init() {
	shellCmd.Flags().StringVar(&shellSave, "save", "", "Append the transcript to this Markdown file on exit")
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive session on the agent",
	Long: `Read commands from standard input and send them to the agent one line
at a time. The working directory reported by the agent is carried to the
next command, so 'cd' behaves as in a local shell.

'clear' clears the screen without contacting the agent and 'restart'
asks the agent to restart itself. What happens when a command is typed
while another is still running follows session.queue: "queue" waits,
"reject" refuses the new command and "concurrent" sends it at once.`,
	Example: `  termbridge shell
  echo 'uname -a' | termbridge shell`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := session.ParsePolicy(appConfig.Session.Queue)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		rec, closeRec := openRecorder(appConfig)
		defer closeRec()

		opts := shellOptions{
			in:          cmd.InOrStdin(),
			out:         cmd.OutOrStdout(),
			exchanger:   newClient(),
			policy:      policy,
			recorder:    rec,
			interactive: isInteractive(cmd.InOrStdin()),
		}
		var transcript *session.Buffer
		if shellSave != "" {
			transcript = &session.Buffer{}
			opts.transcript = transcript
		}

		err = runShell(ctx, opts)
		if err != nil || transcript == nil || transcript.Len() == 0 {
			return err
		}
		// The shell context may already be cancelled by the signal.
		return notes.FileInserter{Path: shellSave}.InsertText(cmd.Context(), formatTranscript(transcript.Lines()))
	},
}

type shellOptions struct {
	in          io.Reader
	out         io.Writer
	exchanger   session.Exchanger
	policy      session.Policy
	recorder    session.Recorder
	interactive bool
	// transcript, when set, receives every line alongside the terminal.
	transcript session.Sink
}

// runShell drives a session from opts.in until EOF or ctx is cancelled.
// Commands still in flight at EOF are waited for.
func runShell(ctx context.Context, opts shellOptions) error {
	var mgr *session.Manager
	termSink := render.NewTerminal(opts.out, func() string { return mgr.Cwd() })

	var sink session.Sink = termSink
	if opts.interactive {
		// The terminal already shows what was typed after the prompt.
		sink = hideCommands{termSink}
	}
	if opts.transcript != nil {
		sink = render.Tee{sink, opts.transcript}
	}

	mopts := []session.Option{session.WithPolicy(opts.policy)}
	if opts.recorder != nil {
		mopts = append(mopts, session.WithRecorder(opts.recorder))
	}
	mgr = session.NewManager(opts.exchanger, sink, mopts...)

	sink.Append(session.Line{Text: Banner, Kind: session.KindSystem})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var g errgroup.Group
	submit := func(line string) {
		var err error
		if strings.TrimSpace(line) == "restart" {
			err = mgr.Restart(ctx)
		} else {
			err = mgr.Submit(ctx, line)
		}
		switch {
		case err == nil, errors.Is(err, protocol.ErrEmptyCommand):
		case errors.Is(err, session.ErrBusy):
			sink.Append(session.Line{Text: "A command is already running.\n", Kind: session.KindSystem})
		case ctx.Err() != nil:
		default:
			sink.Append(session.Line{Text: fmt.Sprintf("Error: %v\n", err), Kind: session.KindError})
		}
	}

	for {
		if opts.interactive {
			fmt.Fprint(opts.out, termSink.Prompt())
		}
		select {
		case <-ctx.Done():
			g.Wait()
			return nil
		case line, ok := <-lines:
			if !ok {
				return g.Wait()
			}
			if opts.policy == session.Queue {
				submit(line)
				continue
			}
			g.Go(func() error {
				submit(line)
				return nil
			})
		}
	}
}

// formatTranscript renders lines as a fenced output block, commands
// prefixed with "$ ".
func formatTranscript(lines []session.Line) string {
	var b strings.Builder
	for _, l := range lines {
		if l.Kind == session.KindSystem {
			continue
		}
		text := l.Text
		if l.Kind == session.KindCommand {
			text = "$ " + text
		}
		if text == "" {
			continue
		}
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	return notes.OutputBlock(b.String())
}

// hideCommands drops echoed command lines.
type hideCommands struct {
	session.Sink
}

func (h hideCommands) Append(l session.Line) {
	if l.Kind == session.KindCommand {
		return
	}
	h.Sink.Append(l)
}

func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
