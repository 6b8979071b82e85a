package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Setup initializes the global slog logger on stderr using
// charmbracelet/log as the backend.
func Setup(verbose bool) {
	SetupWriter(os.Stderr, verbose, isTerminal())
}

// SetupWriter installs the global logger writing to w. Terminals get the
// coloured text format, everything else JSON.
func SetupWriter(w io.Writer, verbose, tty bool) {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "termbridge",
	})

	if verbose {
		handler.SetLevel(charmlog.DebugLevel)
	} else {
		handler.SetLevel(charmlog.WarnLevel)
	}

	if !tty {
		handler.SetFormatter(charmlog.JSONFormatter)
	}

	slog.SetDefault(slog.New(handler))
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

var (
	reAuthHeader = regexp.MustCompile(`(?i)(authorization:\s*)(\S+)`)
	reToken      = regexp.MustCompile(`(?i)(token["']?\s*[=:]\s*["']?)([^\s"',}]+)`)
)

// Mask hides token values in s before it is logged or displayed.
func Mask(s string) string {
	out := reAuthHeader.ReplaceAllString(s, "$1***")
	return reToken.ReplaceAllString(out, "$1***")
}
