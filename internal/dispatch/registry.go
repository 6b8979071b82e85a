// Package dispatch maps a language tag and a code block to one shell command
// line that runs the code on the agent.
package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownLanguage is returned for tags with no registered wrapper.
var ErrUnknownLanguage = errors.New("unsupported language")

// Namer produces the unique part of scratch file names.
type Namer func() string

// UniqueNamer derives a short random suffix so concurrent compiled runs in
// the same directory do not overwrite each other's files.
func UniqueNamer() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Registry holds the language wrappers, keyed by exact, case-sensitive tag.
type Registry struct {
	wrappers map[string]Wrapper
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{wrappers: make(map[string]Wrapper)}
}

// Option configures DefaultRegistry.
type Option func(*options)

type options struct {
	namer Namer
}

// WithNamer overrides how compiled languages name their scratch files.
func WithNamer(n Namer) Option {
	return func(o *options) { o.namer = n }
}

// DefaultRegistry registers every built-in language.
func DefaultRegistry(opts ...Option) *Registry {
	o := options{namer: UniqueNamer}
	for _, opt := range opts {
		opt(&o)
	}

	r := NewRegistry()

	for _, tag := range []string{"sh", "bash", "shell"} {
		r.Register(tag, Passthrough{})
	}

	interpreters := map[string]string{
		"python":     "python",
		"py":         "python",
		"python3":    "python3",
		"node":       "node",
		"js":         "node",
		"javascript": "node",
		"ruby":       "ruby",
		"rb":         "ruby",
		"perl":       "perl",
		"lua":        "lua",
	}
	for tag, interp := range interpreters {
		r.Register(tag, Heredoc{Interpreter: interp})
	}

	c := CompileRun{Compiler: "clang", Ext: ".c", Namer: o.namer}
	cpp := CompileRun{Compiler: "clang++", Ext: ".cpp", Namer: o.namer}
	r.Register("c", c)
	r.Register("cpp", cpp)
	r.Register("c++", cpp)
	r.Register("rust", CompileRun{Compiler: "rustc", Ext: ".rs", Namer: o.namer})

	return r
}

// Register adds or replaces the wrapper for tag.
func (r *Registry) Register(tag string, w Wrapper) {
	r.wrappers[tag] = w
}

// Lookup returns the wrapper registered for tag.
func (r *Registry) Lookup(tag string) (Wrapper, bool) {
	w, ok := r.wrappers[tag]
	return w, ok
}

// Supports reports whether tag has a wrapper.
func (r *Registry) Supports(tag string) bool {
	_, ok := r.Lookup(tag)
	return ok
}

// Wrap converts source into the command line for tag.
func (r *Registry) Wrap(tag, source string) (string, error) {
	w, ok := r.Lookup(tag)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, tag)
	}
	return w.Wrap(source), nil
}

// Languages lists the registered tags in sorted order.
func (r *Registry) Languages() []string {
	tags := make([]string, 0, len(r.wrappers))
	for tag := range r.wrappers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
