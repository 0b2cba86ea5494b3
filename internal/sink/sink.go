// Package sink writes chain artifacts as delimited text for later inspection.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultDelimiter separates entries in a written artifact.
const DefaultDelimiter = "\n\n-------- prompt chain entry --------\n\n"

// DefaultExtension is appended to artifact names by FileSink.
const DefaultExtension = ".txt"

// Sink receives ordered string sequences produced by a chain run.
type Sink interface {
	Write(ctx context.Context, name string, entries []string) error
}

// NoopSink drops all artifacts.
type NoopSink struct{}

// Write ignores the entries.
func (NoopSink) Write(ctx context.Context, name string, entries []string) error {
	return nil
}

// WriteDelimited writes entries to w separated by delimiter. Entries are not
// escaped, so splitting the output on delimiter yields the entries back as
// long as none of them contains it.
func WriteDelimited(w io.Writer, entries []string, delimiter string) error {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	for i, entry := range entries {
		if i > 0 {
			if _, err := io.WriteString(w, delimiter); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, entry); err != nil {
			return err
		}
	}
	return nil
}

// FileSink writes each artifact to <Dir>/<name><Extension>.
type FileSink struct {
	mu        sync.Mutex
	Dir       string
	Delimiter string
	Extension string
}

// NewFileSink creates a file sink rooted at dir.
func NewFileSink(dir, delimiter string) *FileSink {
	return &FileSink{
		Dir:       dir,
		Delimiter: delimiter,
		Extension: DefaultExtension,
	}
}

// Path returns the file an artifact name is written to.
func (s *FileSink) Path(name string) string {
	ext := s.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name+ext)
}

// Write replaces the artifact file with the delimited entries.
func (s *FileSink) Write(ctx context.Context, name string, entries []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("artifact name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid artifact name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}
	if err := WriteDelimited(file, entries, s.Delimiter); err != nil {
		file.Close()
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return file.Close()
}
