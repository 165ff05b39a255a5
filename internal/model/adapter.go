// Package model implements the Model Adapter Registry: selection of the
// active code-generation backend, availability probing, and per-call
// statistics. Prompt construction is each adapter's own responsibility —
// the registry only ever supplies a task description and a task ID.
package model

import (
	"context"
	"time"
)

// Kind identifies one of the three concrete adapter kinds the registry
// knows about.
type Kind string

const (
	KindHTTPLocal  Kind = "http-local"
	KindHosted     Kind = "hosted"
	KindFileBacked Kind = "file-backed"
)

// preferenceOrder is the original's fixed fallback chain: when the
// configured preferred kind is unavailable, try these in order rather than
// picking the first available adapter in arbitrary map order.
var preferenceOrder = []Kind{KindHTTPLocal, KindHosted, KindFileBacked}

// Stats is a single generation call's outcome, appended to the Event Store
// as a ModelCallStat regardless of success.
type Stats struct {
	Kind             Kind
	Name             string
	PromptTokens     int
	CompletionTokens int
	Elapsed          time.Duration
	OK               bool
	Err              error
}

// Adapter is a pluggable code-generation backend.
type Adapter interface {
	Kind() Kind
	Name() string
	IsAvailable(ctx context.Context) bool
	Generate(ctx context.Context, prompt, taskID string) (code string, stats Stats, err error)
}
