package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanmeadows/termbridge/internal/orchestrator"
	"github.com/alanmeadows/termbridge/internal/store"
	"github.com/alanmeadows/termbridge/internal/transport"
)

// Frontmatter keys read and written by the runner.
const (
	KeyCwd     = "termbridge_cwd"
	KeyLastRun = "termbridge_last_run"
)

// ErrNoteChanged is returned when a note was edited while its blocks ran.
var ErrNoteChanged = errors.New("note changed while blocks were running")

// CodeRunner runs one code block.
type CodeRunner interface {
	RunCode(ctx context.Context, lang, source string, inv orchestrator.Invocation) (orchestrator.Result, error)
}

// Note is a parsed note file.
type Note struct {
	Path   string
	Doc    *store.Document
	Blocks []Block
}

// Cwd returns the working directory the note asks its blocks to run in.
func (n *Note) Cwd() string {
	return store.GetString(n.Doc.Frontmatter, KeyCwd)
}

// Load reads and parses the note at path.
func Load(path string, supports func(string) bool) (*Note, error) {
	var doc *store.Document
	err := store.WithReadLock(path, store.DefaultLockTimeout, func() error {
		var err error
		doc, err = store.ReadDocument(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Note{Path: path, Doc: doc, Blocks: Parse([]byte(doc.Body), supports)}, nil
}

// RunOptions selects what Runner.Run does.
type RunOptions struct {
	// Blocks lists block indexes to run; empty runs all of them.
	Blocks []int
	// Cwd overrides the note's termbridge_cwd.
	Cwd string
	// Write stores the output of each block back into the note.
	Write bool
}

// BlockResult is the outcome of one block.
type BlockResult struct {
	Block   Block
	Outcome transport.Outcome
}

// Runner executes the blocks of a note.
type Runner struct {
	code     CodeRunner
	supports func(string) bool
	now      func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(code CodeRunner, supports func(string) bool) *Runner {
	return &Runner{code: code, supports: supports, now: time.Now}
}

// Run executes the selected blocks in order. Blocks run one after another,
// each as its own exchange; a failing block does not stop the rest.
func (r *Runner) Run(ctx context.Context, path string, opts RunOptions) ([]BlockResult, error) {
	note, err := Load(path, r.supports)
	if err != nil {
		return nil, err
	}

	selected, err := selectBlocks(note.Blocks, opts.Blocks)
	if err != nil {
		return nil, err
	}

	cwd := opts.Cwd
	if cwd == "" {
		cwd = note.Cwd()
	}

	results := make([]BlockResult, 0, len(selected))
	for _, b := range selected {
		slog.Debug("running note block", "path", path, "index", b.Index, "lang", b.Lang)
		res, err := r.code.RunCode(ctx, b.Lang, b.Code, orchestrator.Invocation{Cwd: cwd})
		if err != nil {
			return results, fmt.Errorf("block %d: %w", b.Index, err)
		}
		results = append(results, BlockResult{Block: b, Outcome: res.Outcome})
	}

	if opts.Write {
		if err := r.writeBack(path, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

func selectBlocks(blocks []Block, want []int) ([]Block, error) {
	if len(want) == 0 {
		return blocks, nil
	}
	out := make([]Block, 0, len(want))
	for _, idx := range want {
		if idx < 0 || idx >= len(blocks) {
			return nil, fmt.Errorf("block %d does not exist (note has %d runnable blocks)", idx, len(blocks))
		}
		out = append(out, blocks[idx])
	}
	return out, nil
}

// writeBack re-reads the note under an exclusive lock, checks the blocks
// are unchanged and inserts the outputs of the blocks that reached the agent.
func (r *Runner) writeBack(path string, results []BlockResult) error {
	return store.WithLock(path, store.DefaultLockTimeout, func() error {
		doc, err := store.ReadDocument(path)
		if err != nil {
			return err
		}
		current := Parse([]byte(doc.Body), r.supports)

		var ins []Insertion
		for _, res := range results {
			if !res.Outcome.Reached() {
				continue
			}
			idx := res.Block.Index
			if idx >= len(current) || current[idx].Code != res.Block.Code || current[idx].Lang != res.Block.Lang {
				return ErrNoteChanged
			}
			ins = append(ins, Insertion{Block: current[idx], Text: res.Outcome.Output})
		}
		if len(ins) == 0 {
			return nil
		}

		doc.Body = ApplyOutputs(doc.Body, ins)
		doc.Frontmatter = store.SetField(doc.Frontmatter, KeyLastRun, store.FormatTime(r.now()))
		return store.WriteDocument(path, doc)
	})
}
