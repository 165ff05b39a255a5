package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joshjon/kit/errtag"
	"github.com/joshjon/kit/log"
)

// Registry is the single-writer, alias-keyed Repository Registry. Pull and
// CommitAndPush report Git-level failures as structured results (see
// git.go's Result types); ConnectRemote and ConnectLocal return a failed
// clone or git init as an error, as other methods do for a bad alias or a
// persistence failure.
type Registry struct {
	baseDir     string
	sidecarPath string
	logger      log.Logger

	mu       sync.Mutex
	bindings map[string]*Binding
}

// NewRegistry constructs a Registry rooted at baseDir, the configurable
// directory cloned repositories are created under. sidecarPath is where
// the alias -> Binding map is persisted between restarts.
func NewRegistry(baseDir, sidecarPath string, logger log.Logger) (*Registry, error) {
	r := &Registry{
		baseDir:     baseDir,
		sidecarPath: sidecarPath,
		logger:      logger.With("component", "repository-registry"),
		bindings:    make(map[string]*Binding),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	b, err := os.ReadFile(r.sidecarPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("repository: load sidecar: %w", err)
	}

	var sc sidecar
	if err := json.Unmarshal(b, &sc); err != nil {
		return fmt.Errorf("repository: parse sidecar: %w", err)
	}
	if sc.Repositories != nil {
		r.bindings = sc.Repositories
	}
	return nil
}

// saveLocked persists the current binding map. Caller must hold r.mu.
func (r *Registry) saveLocked() error {
	if r.sidecarPath == "" {
		return nil
	}
	sc := sidecar{Repositories: r.bindings, LastUpdated: time.Now()}
	b, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("repository: marshal sidecar: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.sidecarPath), 0o755); err != nil {
		return fmt.Errorf("repository: create sidecar dir: %w", err)
	}
	if err := os.WriteFile(r.sidecarPath, b, 0o644); err != nil {
		return fmt.Errorf("repository: write sidecar: %w", err)
	}
	return nil
}

// ConnectRemote clones url into {base_dir}/{alias} and records the
// binding. Fails if alias already exists.
func (r *Registry) ConnectRemote(ctx context.Context, url, alias, branch string) (*Binding, error) {
	if branch == "" {
		branch = "main"
	}

	r.mu.Lock()
	if _, exists := r.bindings[alias]; exists {
		r.mu.Unlock()
		return nil, errtag.Tag[ErrTagRepositoryConflict](fmt.Errorf("alias %q already connected", alias))
	}
	r.mu.Unlock()

	workDir := filepath.Join(r.baseDir, alias)
	if err := cloneRepo(ctx, url, workDir, branch); err != nil {
		return nil, fmt.Errorf("repository: connect remote: %w", err)
	}

	binding := &Binding{
		Alias:       alias,
		Kind:        KindCloned,
		WorkingDir:  workDir,
		RemoteURL:   url,
		Branch:      branch,
		Active:      true,
		ConnectedAt: time.Now(),
	}
	return binding, r.register(binding)
}

// ConnectLocal binds an existing directory, optionally running git init.
// Fails if alias already exists.
func (r *Registry) ConnectLocal(ctx context.Context, path, alias string, initGit bool) (*Binding, error) {
	r.mu.Lock()
	if _, exists := r.bindings[alias]; exists {
		r.mu.Unlock()
		return nil, errtag.Tag[ErrTagRepositoryConflict](fmt.Errorf("alias %q already connected", alias))
	}
	r.mu.Unlock()

	if initGit {
		if err := initRepo(path); err != nil {
			return nil, fmt.Errorf("repository: connect local: %w", err)
		}
	}

	binding := &Binding{
		Alias:       alias,
		Kind:        KindLocal,
		WorkingDir:  path,
		Active:      true,
		ConnectedAt: time.Now(),
	}
	return binding, r.register(binding)
}

func (r *Registry) register(b *Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.Alias] = b
	return r.saveLocked()
}

// Disconnect removes a binding; if removeFiles and kind=cloned, the
// working directory is deleted too.
func (r *Registry) Disconnect(alias string, removeFiles bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[alias]
	if !ok {
		return errtag.Tag[ErrTagRepositoryNotFound](fmt.Errorf("alias %q not connected", alias))
	}
	delete(r.bindings, alias)

	if removeFiles && b.Kind == KindCloned {
		if err := os.RemoveAll(b.WorkingDir); err != nil {
			r.logger.Warn("failed to remove repository working directory", "alias", alias, "error", err.Error())
		}
	}
	return r.saveLocked()
}

// SetActive toggles a binding's active flag.
func (r *Registry) SetActive(alias string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[alias]
	if !ok {
		return errtag.Tag[ErrTagRepositoryNotFound](fmt.Errorf("alias %q not connected", alias))
	}
	b.Active = active
	return r.saveLocked()
}

// List returns every binding, in no particular order.
func (r *Registry) List() []*Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		copyB := *b
		out = append(out, &copyB)
	}
	return out
}

// Get returns a single binding by alias.
func (r *Registry) Get(alias string) (*Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[alias]
	if !ok {
		return nil, errtag.Tag[ErrTagRepositoryNotFound](fmt.Errorf("alias %q not connected", alias))
	}
	copyB := *b
	return &copyB, nil
}

// WorkingDir resolves an alias to its working directory.
func (r *Registry) WorkingDir(alias string) (string, error) {
	b, err := r.Get(alias)
	if err != nil {
		return "", err
	}
	return b.WorkingDir, nil
}

// touchLastPull stamps a binding's last_pull timestamp after a successful
// pull.
func (r *Registry) touchLastPull(alias string, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bindings[alias]; ok {
		b.LastPull = &ts
		_ = r.saveLocked()
	}
}
