package render_test

import (
	"bytes"
	"testing"

	"github.com/alanmeadows/termbridge/internal/render"
	"github.com/alanmeadows/termbridge/internal/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestTerminalAppend(t *testing.T) {
	var buf bytes.Buffer
	cwd := "/data/foo"
	term := render.NewTerminal(&buf, func() string { return cwd })

	term.Append(session.Line{Text: "ls", Kind: session.KindCommand})
	term.Append(session.Line{Text: "a\nb\n", Kind: session.KindOutput})
	term.Append(session.Line{Text: "", Kind: session.KindOutput})
	term.Append(session.Line{Text: "Error: boom\n", Kind: session.KindError})
	term.Append(session.Line{Text: "Server restarting...\n", Kind: session.KindSystem})

	assert.Equal(t, "/data/foo $ ls\na\nb\nError: boom\nServer restarting...\n", buf.String())
}

func TestTerminalPromptDefaultsToHome(t *testing.T) {
	term := render.NewTerminal(&bytes.Buffer{}, nil)
	assert.Equal(t, "~ $ ", term.Prompt())
}

func TestTerminalClear(t *testing.T) {
	var buf bytes.Buffer
	term := render.NewTerminal(&buf, nil)
	term.Clear()
	assert.Equal(t, "\033[H\033[2J", buf.String())
}

func TestTee(t *testing.T) {
	a, b := &session.Buffer{}, &session.Buffer{}
	tee := render.Tee{a, b}

	tee.Append(session.Line{Text: "x", Kind: session.KindOutput})
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())

	tee.Clear()
	assert.Zero(t, a.Len())
	assert.Zero(t, b.Len())
}
