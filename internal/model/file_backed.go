package model

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// FileBackedAdapter reads a canned response from a local file instead of
// calling any network backend — the offline/dev-loop adapter kind, useful
// when no generation service is reachable.
type FileBackedAdapter struct {
	path string
	name string
}

// NewFileBackedAdapter constructs an adapter that returns the contents of
// path on every Generate call, substituting the prompt and task ID into
// any `{{prompt}}`/`{{task_id}}` placeholders it contains.
func NewFileBackedAdapter(path, name string) *FileBackedAdapter {
	return &FileBackedAdapter{path: path, name: name}
}

func (a *FileBackedAdapter) Kind() Kind   { return KindFileBacked }
func (a *FileBackedAdapter) Name() string { return a.name }

// IsAvailable checks the backing file exists and is readable.
func (a *FileBackedAdapter) IsAvailable(ctx context.Context) bool {
	if a.path == "" {
		return false
	}
	info, err := os.Stat(a.path)
	return err == nil && !info.IsDir()
}

func (a *FileBackedAdapter) Generate(ctx context.Context, prompt, taskID string) (string, Stats, error) {
	start := time.Now()
	stats := Stats{Kind: a.Kind(), Name: a.name}

	b, err := os.ReadFile(a.path)
	stats.Elapsed = time.Since(start)
	if err != nil {
		return "", stats, fmt.Errorf("model: file-backed: read %s: %w", a.path, err)
	}

	code := string(b)
	code = strings.ReplaceAll(code, "{{prompt}}", prompt)
	code = strings.ReplaceAll(code, "{{task_id}}", taskID)

	stats.PromptTokens = len(strings.Fields(prompt))
	stats.CompletionTokens = len(strings.Fields(code))
	stats.OK = true
	return code, stats, nil
}
