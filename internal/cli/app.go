package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/alanmeadows/termbridge/internal/config"
	"github.com/alanmeadows/termbridge/internal/history"
	"github.com/alanmeadows/termbridge/internal/orchestrator"
	"github.com/alanmeadows/termbridge/internal/secrets"
	"github.com/alanmeadows/termbridge/internal/session"
	"github.com/alanmeadows/termbridge/internal/transport"
	"github.com/charmbracelet/lipgloss"
)

var noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

// newClient returns a transport client that re-reads the config for every
// exchange.
func newClient() *transport.Client {
	return transport.NewClient(&config.Source{
		Path:    configPath,
		Secrets: secrets.NewKeyring(),
	})
}

// openRecorder opens the history store when enabled. The returned close
// function is always safe to call.
func openRecorder(cfg *config.Config) (session.Recorder, func()) {
	if !cfg.History.IsEnabled() {
		return nil, func() {}
	}
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	store, err := history.Open(config.ExpandHome(path))
	if err != nil {
		slog.Warn("history disabled", "error", err)
		return nil, func() {}
	}
	return store, func() { store.Close() }
}

// stderrNotifier prints orchestrator notices on w.
func stderrNotifier(w io.Writer) orchestrator.Notifier {
	return orchestrator.NotifierFunc(func(msg string) {
		fmt.Fprintln(w, noticeStyle.Render(msg))
	})
}

// newOrchestrator wires an orchestrator with history and notices.
func newOrchestrator(errOut io.Writer, opts ...orchestrator.Option) (*orchestrator.Orchestrator, func()) {
	rec, closeRec := openRecorder(appConfig)
	base := []orchestrator.Option{orchestrator.WithNotifier(stderrNotifier(errOut))}
	if rec != nil {
		base = append(base, orchestrator.WithRecorder(rec))
	}
	return orchestrator.New(newClient(), append(base, opts...)...), closeRec
}
