// Package repository implements the Repository Registry: the durable
// alias -> working-directory map, and the clone/open/pull/push/commit
// primitives the Task Executor drives each task's commit stage through.
package repository

import "time"

// Kind distinguishes a binding whose working directory this registry
// cloned itself from one that simply points at an existing directory.
type Kind string

const (
	KindCloned Kind = "cloned"
	KindLocal  Kind = "local"
)

// Binding is the durable record mapping a user-facing alias to a working
// directory, the spec's RepositoryBinding entity.
type Binding struct {
	Alias       string     `json:"alias"`
	Kind        Kind       `json:"kind"`
	WorkingDir  string     `json:"working_dir"`
	RemoteURL   string     `json:"remote_url,omitempty"`
	Branch      string     `json:"branch,omitempty"`
	Active      bool       `json:"active"`
	ConnectedAt time.Time  `json:"connected_at"`
	LastPull    *time.Time `json:"last_pull,omitempty"`
}

// sidecar is the on-disk shape of the registry's persisted state: a small
// JSON file, not a Store row, matching the spec's "small JSON-shaped
// sidecar" option for the Registry's durable map.
type sidecar struct {
	Repositories map[string]*Binding `json:"repositories"`
	LastUpdated  time.Time           `json:"last_updated"`
}
