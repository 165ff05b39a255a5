package repository

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadFile returns the current on-disk contents of a file previously
// materialized (or otherwise present) in alias's working directory — used
// by the Tireless Reviewer to re-examine a completed task's generated
// source.
func (r *Registry) ReadFile(alias, name string) (string, error) {
	b, err := r.Get(alias)
	if err != nil {
		return "", err
	}
	full := filepath.Join(b.WorkingDir, filepath.FromSlash(name))
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("repository: read file %s: %w", name, err)
	}
	return string(data), nil
}

// MaterializeFiles writes each virtual filename -> source pair into
// alias's working directory, creating parent directories as needed. Used
// by the Task Executor's commit stage after validation has passed.
func (r *Registry) MaterializeFiles(alias string, files map[string]string) ([]string, error) {
	b, err := r.Get(alias)
	if err != nil {
		return nil, err
	}

	written := make([]string, 0, len(files))
	for name, content := range files {
		full := filepath.Join(b.WorkingDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return written, fmt.Errorf("repository: materialize %s: %w", name, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("repository: materialize %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}
