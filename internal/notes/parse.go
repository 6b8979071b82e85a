// Package notes finds runnable code blocks in Markdown notes, runs them
// through the agent and writes their output back into the note.
package notes

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// OutputLang tags the fenced blocks holding captured output.
const OutputLang = "output"

// Span is a byte range [Start, End) of a note body.
type Span struct {
	Start int
	End   int
}

// Block is a top-level fenced code block with a runnable language.
type Block struct {
	// Index counts runnable blocks from 0 in document order.
	Index int
	Lang  string
	Code  string
	// Span covers the block from its opening fence through the newline
	// after its closing fence.
	Span Span
	// Output is the ```output block directly following this one, if any.
	Output *Span
}

// Parse returns the runnable blocks of body. supports decides which info
// strings are runnable. Blocks nested in lists or quotes are ignored.
func Parse(body []byte, supports func(lang string) bool) []Block {
	root := goldmark.New().Parser().Parse(text.NewReader(body))

	var blocks []Block
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			continue
		}
		lang := string(fcb.Language(body))
		if lang == "" || lang == OutputLang || !supports(lang) {
			continue
		}

		b := Block{
			Index: len(blocks),
			Lang:  lang,
			Code:  blockCode(fcb, body),
			Span:  blockSpan(fcb, body),
		}
		if next, ok := fcb.NextSibling().(*ast.FencedCodeBlock); ok && string(next.Language(body)) == OutputLang {
			span := blockSpan(next, body)
			b.Output = &span
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func blockCode(fcb *ast.FencedCodeBlock, src []byte) string {
	var buf bytes.Buffer
	lines := fcb.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

// blockSpan locates the opening fence from the info string and scans
// forward from the last content line for the matching closing fence.
func blockSpan(fcb *ast.FencedCodeBlock, src []byte) Span {
	infoStart := fcb.Info.Segment.Start
	start := bytes.LastIndexByte(src[:infoStart], '\n') + 1

	i := start
	for i < len(src) && src[i] == ' ' {
		i++
	}
	fenceChar := src[i]
	fenceLen := 0
	for i+fenceLen < len(src) && src[i+fenceLen] == fenceChar {
		fenceLen++
	}

	from := lineEnd(src, infoStart)
	if lines := fcb.Lines(); lines.Len() > 0 {
		from = lines.At(lines.Len() - 1).Stop
		if from > 0 && src[from-1] != '\n' {
			from = lineEnd(src, from)
		}
	}

	for pos := from; pos < len(src); {
		end := lineEnd(src, pos)
		line := strings.TrimLeft(string(src[pos:end]), " ")
		run := 0
		for run < len(line) && line[run] == fenceChar {
			run++
		}
		if run >= fenceLen && strings.TrimSpace(line[run:]) == "" {
			return Span{Start: start, End: end}
		}
		pos = end
	}
	return Span{Start: start, End: len(src)}
}

// lineEnd returns the index just past the newline ending the line at pos.
func lineEnd(src []byte, pos int) int {
	if idx := bytes.IndexByte(src[pos:], '\n'); idx >= 0 {
		return pos + idx + 1
	}
	return len(src)
}

// Insertion replaces whatever output block follows Block with Text.
type Insertion struct {
	Block Block
	Text  string
}

// ApplyOutputs writes an ```output block after each inserted block,
// replacing a previous one. Insertions are applied back to front so earlier
// offsets stay valid.
func ApplyOutputs(body string, ins []Insertion) string {
	sorted := append([]Insertion(nil), ins...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Block.Span.End > sorted[j-1].Block.Span.End; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	for _, in := range sorted {
		start := in.Block.Span.End
		end := start
		if in.Block.Output != nil {
			end = in.Block.Output.End
		}
		prefix := ""
		if start > 0 && body[start-1] != '\n' {
			prefix = "\n"
		}
		body = body[:start] + prefix + OutputBlock(in.Text) + body[end:]
	}
	return body
}

// OutputBlock formats text as a fenced output block preceded by a blank
// line. The fence grows until it cannot be closed by the text itself.
func OutputBlock(text string) string {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return "\n" + fence + OutputLang + "\n" + text + fence + "\n"
}
