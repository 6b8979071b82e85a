package session

import "sync"

// Kind tags an output line for the display surface.
type Kind string

const (
	KindCommand Kind = "command"
	KindOutput  Kind = "output"
	KindError   Kind = "error"
	KindSystem  Kind = "system"
)

// Line is one entry of a session transcript. Lines are appended and never
// edited; Clear discards all of them at once.
type Line struct {
	Text string
	Kind Kind
}

// Sink is the display surface a Manager appends to.
type Sink interface {
	Append(Line)
	Clear()
}

// Buffer is an in-memory Sink that keeps the ordered transcript.
type Buffer struct {
	mu    sync.Mutex
	lines []Line
}

// Append adds l to the end of the transcript.
func (b *Buffer) Append(l Line) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, l)
}

// Clear empties the transcript.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
}

// Lines returns a copy of the transcript.
func (b *Buffer) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the number of lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
