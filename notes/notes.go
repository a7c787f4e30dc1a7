// Package notes keeps the markdown file in which the agent records what it has
// learned about the data platform.
package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/habiliai/dataagent/errors"
)

const DefaultContent = `# Data Platform Context

## Overview
<!-- Brief description of this data platform -->

## Key Tables
<!-- Important tables and what they contain -->

## Relationships
<!-- How tables relate to each other -->

## Common Patterns
<!-- Useful query patterns discovered -->

## Notes
<!-- Other important observations -->
`

// Sections lists the section keys accepted by Update, in file order.
var Sections = []string{"overview", "key_tables", "relationships", "common_patterns", "notes"}

var headers = map[string]string{
	"overview":        "## Overview",
	"key_tables":      "## Key Tables",
	"relationships":   "## Relationships",
	"common_patterns": "## Common Patterns",
	"notes":           "## Notes",
}

type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Create writes the default template, replacing any existing file.
func (f *File) Create() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(DefaultContent)
}

// Content returns the file contents, or "" when it does not exist.
func (f *File) Content() (string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", f.path)
	}
	return string(data), nil
}

// Read returns the text shown to the model for read_context.
func (f *File) Read() (string, error) {
	if !f.Exists() {
		return "No context file exists yet.", nil
	}
	content, err := f.Content()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "Context file is empty.", nil
	}
	return content, nil
}

// Update replaces the body of section with content, appending the section when missing.
func (f *File) Update(section, content string) (string, error) {
	header, ok := headers[section]
	if !ok {
		return fmt.Sprintf("Unknown section: %s", section), nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.Content()
	if err != nil {
		return "", err
	}

	var (
		out      []string
		inTarget bool
		updated  bool
	)
	for _, line := range strings.Split(current, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			inTarget = trimmed == header
			if inTarget {
				out = append(out, line, content)
				updated = true
				continue
			}
		}
		if !inTarget {
			out = append(out, line)
		}
	}
	if !updated {
		out = append(out, "\n"+header, content)
	}

	if err := f.write(strings.Join(out, "\n")); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated %s section.", section), nil
}

func (f *File) write(content string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", f.path)
	}
	if err := os.WriteFile(f.path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", f.path)
	}
	return nil
}
