// Package store reads and writes Markdown notes with YAML frontmatter and
// serializes access to them with file locks.
package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Document is a markdown file split into frontmatter and body.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// ReadDocument reads a markdown file with optional YAML frontmatter.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}
	return ParseDocument(data), nil
}

// ParseDocument splits data into frontmatter and body. Without frontmatter
// the whole input is the body.
func ParseDocument(data []byte) *Document {
	var matter map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(data), &matter)
	if err != nil {
		slog.Debug("no frontmatter found in document", "error", err)
		return &Document{Frontmatter: make(map[string]any), Body: string(data)}
	}
	if matter == nil {
		matter = make(map[string]any)
	}
	return &Document{Frontmatter: matter, Body: string(body)}
}

// Render serializes doc back to markdown.
func (d *Document) Render() ([]byte, error) {
	var buf bytes.Buffer
	if len(d.Frontmatter) > 0 {
		buf.WriteString("---\n")
		fm, err := yaml.Marshal(d.Frontmatter)
		if err != nil {
			return nil, fmt.Errorf("marshaling frontmatter: %w", err)
		}
		buf.Write(fm)
		buf.WriteString("---\n\n")
		buf.WriteString(strings.TrimLeft(d.Body, "\n"))
		return buf.Bytes(), nil
	}
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

// WriteDocument writes doc to path atomically.
func WriteDocument(path string, doc *Document) error {
	data, err := doc.Render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	return atomicWriteFile(path, data, 0644)
}

// WriteBody writes a plain body (no frontmatter) to path atomically.
func WriteBody(path string, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	return atomicWriteFile(path, []byte(body), 0644)
}

// atomicWriteFile writes data to a temp file then renames it into place,
// preventing partial writes on crash or disk-full.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Exists checks if a file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
