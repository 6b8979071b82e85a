package dispatch

import (
	"fmt"
	"strings"
)

// DefaultSentinel terminates the heredocs embedding code bodies.
const DefaultSentinel = "TERMUX_BRIDGE_EOF"

// tempPrefix names the scratch files compiled languages write into the
// agent's working directory.
const tempPrefix = ".termux_bridge_"

// Wrapper turns a source block into a single shell command line.
type Wrapper interface {
	Wrap(source string) string
}

// WrapperFunc adapts a plain function to Wrapper.
type WrapperFunc func(source string) string

// Wrap calls f.
func (f WrapperFunc) Wrap(source string) string { return f(source) }

// Passthrough hands shell-native code to the remote shell as is.
type Passthrough struct{}

// Wrap returns source unchanged.
func (Passthrough) Wrap(source string) string { return source }

// Heredoc feeds the code to an interpreter reading its program from stdin.
type Heredoc struct {
	Interpreter string
}

// Wrap produces `{ interp - <<'S' ... S }` with a sentinel absent from source.
func (h Heredoc) Wrap(source string) string {
	sentinel := Sentinel(source)
	var b strings.Builder
	fmt.Fprintf(&b, "{ %s - <<'%s'\n", h.Interpreter, sentinel)
	writeBody(&b, source)
	fmt.Fprintf(&b, "%s\n}", sentinel)
	return b.String()
}

// CompileRun writes the code to a scratch source file, compiles it, runs the
// binary if compilation succeeded and always removes both files afterwards.
type CompileRun struct {
	Compiler string
	// Ext is the source file extension, including the dot.
	Ext   string
	Flags []string
	// Namer returns the per-invocation suffix of the scratch files.
	Namer Namer
}

// Wrap produces the write/compile/run/cleanup unit. Cleanup follows a `;` so
// it runs after a failed compile as well, and `rm -f` never fails the line.
func (c CompileRun) Wrap(source string) string {
	id := "temp"
	if c.Namer != nil {
		id = c.Namer()
	}
	src := tempPrefix + id + c.Ext
	exe := tempPrefix + id + "_exe"
	sentinel := Sentinel(source)

	compile := []string{c.Compiler}
	compile = append(compile, c.Flags...)
	compile = append(compile, src, "-o", exe)

	var b strings.Builder
	fmt.Fprintf(&b, "{ cat > %s <<'%s'\n", src, sentinel)
	writeBody(&b, source)
	fmt.Fprintf(&b, "%s\n", sentinel)
	fmt.Fprintf(&b, "%s && ./%s; rm -f %s %s; }", strings.Join(compile, " "), exe, src, exe)
	return b.String()
}

// Sentinel returns DefaultSentinel, suffixed with a counter until it does
// not occur anywhere in source.
func Sentinel(source string) string {
	sentinel := DefaultSentinel
	for i := 1; strings.Contains(source, sentinel); i++ {
		sentinel = fmt.Sprintf("%s_%d", DefaultSentinel, i)
	}
	return sentinel
}

func writeBody(b *strings.Builder, source string) {
	b.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		b.WriteByte('\n')
	}
}
