package notes

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/alanmeadows/termbridge/internal/store"
)

// CursorMarker marks the insertion point in a paste target file.
const CursorMarker = "<!-- termbridge:cursor -->"

// FileInserter pastes text into a file: just before CursorMarker when the
// file has one, at the end otherwise. The marker stays in place so
// repeated pastes accumulate in order.
type FileInserter struct {
	Path string
}

// InsertText implements orchestrator.Inserter.
func (f FileInserter) InsertText(_ context.Context, text string) error {
	return store.WithLock(f.Path, store.DefaultLockTimeout, func() error {
		data, err := os.ReadFile(f.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return store.WriteBody(f.Path, insertAtCursor(string(data), text))
	})
}

func insertAtCursor(content, text string) string {
	if idx := strings.Index(content, CursorMarker); idx >= 0 {
		return content[:idx] + text + content[idx:]
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + text
}
