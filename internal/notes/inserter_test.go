package notes

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileInserterAppendsWithoutMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	require.NoError(t, os.WriteFile(path, []byte("notes"), 0644))

	ins := FileInserter{Path: path}
	require.NoError(t, ins.InsertText(context.Background(), "hello\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "notes\nhello\n", string(data))
}

func TestFileInserterCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "new.md")

	require.NoError(t, FileInserter{Path: path}.InsertText(context.Background(), "x"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestFileInserterKeepsMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	require.NoError(t, os.WriteFile(path, []byte("top\n"+CursorMarker+"\nbottom\n"), 0644))

	ins := FileInserter{Path: path}
	require.NoError(t, ins.InsertText(context.Background(), "one\n"))
	require.NoError(t, ins.InsertText(context.Background(), "two\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "top\none\ntwo\n"+CursorMarker+"\nbottom\n", string(data))
}
