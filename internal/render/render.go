// Package render draws session transcripts on a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alanmeadows/termbridge/internal/session"
	"github.com/charmbracelet/lipgloss"
)

const clearScreen = "\033[H\033[2J"

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	cwdStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

// Terminal is a session.Sink writing styled lines to w.
type Terminal struct {
	mu  sync.Mutex
	w   io.Writer
	cwd func() string
}

// NewTerminal creates a Terminal. cwd, when non-nil, supplies the directory
// shown in the prompt of echoed commands.
func NewTerminal(w io.Writer, cwd func() string) *Terminal {
	return &Terminal{w: w, cwd: cwd}
}

// Append writes l. Empty output is not printed.
func (t *Terminal) Append(l session.Line) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch l.Kind {
	case session.KindCommand:
		fmt.Fprintf(t.w, "%s%s\n", t.prompt(), l.Text)
	case session.KindError:
		writeBlock(t.w, l.Text, errorStyle)
	case session.KindSystem:
		writeBlock(t.w, l.Text, systemStyle)
	default:
		if l.Text == "" {
			return
		}
		io.WriteString(t.w, l.Text)
		if !strings.HasSuffix(l.Text, "\n") {
			io.WriteString(t.w, "\n")
		}
	}
}

// Clear wipes the screen.
func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.w, clearScreen)
}

// Prompt returns the input prompt for the current directory.
func (t *Terminal) Prompt() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prompt()
}

func (t *Terminal) prompt() string {
	dir := "~"
	if t.cwd != nil {
		if d := t.cwd(); d != "" {
			dir = d
		}
	}
	return cwdStyle.Render(dir) + " " + promptStyle.Render("$") + " "
}

func writeBlock(w io.Writer, text string, style lipgloss.Style) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintln(w, style.Render(line))
	}
}

// Tee fans lines out to several sinks.
type Tee []session.Sink

// Append forwards l to every sink.
func (t Tee) Append(l session.Line) {
	for _, s := range t {
		s.Append(l)
	}
}

// Clear clears every sink.
func (t Tee) Clear() {
	for _, s := range t {
		s.Clear()
	}
}
