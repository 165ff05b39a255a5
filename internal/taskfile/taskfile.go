// Package taskfile implements the task-file loader: a watched JSON or
// YAML file of task descriptions that gets parsed and enqueued whenever
// it changes, and once eagerly at startup. Grounded on the same
// fsnotify + debounce-timer shape a configuration-reload watcher uses,
// generalized here from "reload a config struct" to "enqueue every entry
// in a task list." Each reload enqueues every entry again, including
// entries an earlier load already enqueued.
package taskfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joshjon/kit/log"
	"gopkg.in/yaml.v3"

	"github.com/devloopai/agentcore/internal/task"
)

// defaultDebounce absorbs the burst of write/rename/create events most
// editors produce for a single logical save.
const defaultDebounce = 2 * time.Second

// Queue is the subset of *queue.Queue the loader enqueues through.
type Queue interface {
	Put(ctx context.Context, t *task.Task) (bool, error)
}

// entry is one task-file list element. It may be a bare JSON/YAML string
// (treated as Description with priority 0) or an object; UnmarshalJSON
// and UnmarshalYAML both special-case the bare-string form.
type entry struct {
	TaskID      string         `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Prompt      string         `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Priority    int            `json:"priority,omitempty" yaml:"priority,omitempty"`
	TargetRepo  string         `json:"target_repo,omitempty" yaml:"target_repo,omitempty"`
	MaxRetries  int            `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (e *entry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = entry{Description: s}
		return nil
	}
	type plain entry
	return json.Unmarshal(data, (*plain)(e))
}

func (e *entry) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		*e = entry{Description: s}
		return nil
	}
	type plain entry
	return value.Decode((*plain)(e))
}

// document is the top-level task-file shape: either a bare list or an
// object with a "tasks" key.
type document struct {
	Tasks []entry `json:"tasks" yaml:"tasks"`
}

// description returns the entry's effective description, preferring
// Description over the prompt alias.
func (e entry) description() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Prompt
}

// parse accepts top-level "[...]" or "{tasks: [...]}", trying JSON first
// and falling back to YAML — a superset of JSON, this also accepts plain
// JSON files that reach the YAML path.
func parse(data []byte) ([]entry, error) {
	var list []entry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err == nil && len(doc.Tasks) > 0 {
		return doc.Tasks, nil
	}

	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list, nil
	}
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc.Tasks, nil
	}

	return nil, errors.New("taskfile: unrecognized format — expected a list or {tasks: [...]}")
}

// Loader watches a single path and enqueues every task entry it finds,
// on startup and on every subsequent change.
type Loader struct {
	path     string
	queue    Queue
	logger   log.Logger
	debounce time.Duration

	defaultMaxRetries int
	defaultRepo       string
}

// Config controls defaults applied to an entry that omits a field.
type Config struct {
	Debounce          time.Duration
	DefaultMaxRetries int
	DefaultRepo       string
}

// NewLoader constructs a Loader over path. Call Load once to process the
// file immediately, then Watch to react to subsequent changes.
func NewLoader(path string, q Queue, cfg Config, logger log.Logger) *Loader {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Loader{
		path:              path,
		queue:             q,
		logger:            logger.With("component", "taskfile"),
		debounce:          debounce,
		defaultMaxRetries: cfg.DefaultMaxRetries,
		defaultRepo:       cfg.DefaultRepo,
	}
}

// Load reads and parses the file once, enqueuing every valid entry. A
// missing file is not an error — it is treated as "nothing to load yet."
func (l *Loader) Load(ctx context.Context) (int, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("taskfile: read %s: %w", l.path, err)
	}

	entries, err := parse(data)
	if err != nil {
		return 0, fmt.Errorf("taskfile: parse %s: %w", l.path, err)
	}

	n := 0
	for _, e := range entries {
		desc := e.description()
		if desc == "" {
			l.logger.Warn("skipping task-file entry with no description or prompt")
			continue
		}

		maxRetries := e.MaxRetries
		if maxRetries <= 0 {
			maxRetries = l.defaultMaxRetries
		}
		repo := e.TargetRepo
		if repo == "" {
			repo = l.defaultRepo
		}

		t := task.NewTask(desc, e.Priority, maxRetries, repo)
		if e.TaskID != "" {
			if id, err := task.ParseID(e.TaskID); err == nil {
				t.ID = id
			}
		}

		if _, err := l.queue.Put(ctx, t); err != nil {
			l.logger.Error("failed to enqueue task-file entry", "error", err)
			continue
		}
		n++
	}

	l.logger.Info("loaded task file", "path", l.path, "enqueued", n)
	return n, nil
}

// Watch blocks, reloading the file on every write/create event (debounced)
// until ctx is cancelled. The watched directory, not the file itself, is
// added to fsnotify so editors that delete-and-recreate on save are still
// observed.
func (l *Loader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("taskfile: create watcher: %w", err)
	}
	defer w.Close()

	dir := dirOf(l.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("taskfile: watch %s: %w", dir, err)
	}

	var debounceTimer *time.Timer
	reload := func() {
		if _, err := l.Load(ctx); err != nil {
			l.logger.Error("failed to reload task file", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != l.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(l.debounce, reload)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("task file watcher error", "error", err)
		}
	}
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
