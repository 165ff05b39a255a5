package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joshjon/kit/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/devloopai/agentcore/internal/store"
)

// ErrNoAdapterAvailable is a ConfigurationError surfaced at startup (and on
// switch) when no registered adapter reports itself available.
var ErrNoAdapterAvailable = errors.New("model: no adapter available")

// Statter is the subset of *store.Store the registry appends
// ModelCallStat rows through.
type Statter interface {
	AppendModelStat(ctx context.Context, m store.ModelCallStat) error
}

// guardedAdapter wraps one Adapter with a per-adapter circuit breaker and
// rate limiter, so a misbehaving backend can trip independently of the
// others and can't be hammered by every worker at once.
type guardedAdapter struct {
	adapter Adapter
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// Registry selects the active code-generation backend and records
// per-call statistics for every attempt, successful or not.
type Registry struct {
	logger   log.Logger
	stats    Statter
	adapters map[Kind]*guardedAdapter

	active Kind
}

// NewRegistry constructs a Registry over the given adapters, keyed by
// their own Kind(). rateLimit bounds calls per second per adapter; zero
// disables limiting.
func NewRegistry(stats Statter, logger log.Logger, rateLimit float64, adapters ...Adapter) *Registry {
	r := &Registry{
		logger:   logger.With("component", "model-registry"),
		stats:    stats,
		adapters: make(map[Kind]*guardedAdapter, len(adapters)),
	}
	for _, a := range adapters {
		limiter := rate.NewLimiter(rate.Inf, 1)
		if rateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(rateLimit), 1)
		}
		r.adapters[a.Kind()] = &guardedAdapter{
			adapter: a,
			limiter: limiter,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        string(a.Kind()),
				MaxRequests: 1,
				Interval:    time.Minute,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			}),
		}
	}
	return r
}

// Initialize picks preferred if it is available; otherwise falls back to
// the first available adapter in the fixed preference order
// (http-local -> hosted -> file-backed), logging a warning when it had to
// fall back. Returns ErrNoAdapterAvailable if nothing is available.
func (r *Registry) Initialize(ctx context.Context, preferred Kind) error {
	if g, ok := r.adapters[preferred]; ok && g.adapter.IsAvailable(ctx) {
		r.active = preferred
		return nil
	}

	for _, kind := range preferenceOrder {
		g, ok := r.adapters[kind]
		if !ok || !g.adapter.IsAvailable(ctx) {
			continue
		}
		r.logger.Warn("preferred model adapter unavailable, falling back",
			"preferred", string(preferred), "fallback", string(kind))
		r.active = kind
		return nil
	}

	return ErrNoAdapterAvailable
}

// Switch changes the active adapter kind, succeeding only if the target is
// currently available.
func (r *Registry) Switch(ctx context.Context, kind Kind) bool {
	g, ok := r.adapters[kind]
	if !ok || !g.adapter.IsAvailable(ctx) {
		return false
	}
	r.active = kind
	return true
}

// Active returns the currently selected adapter kind.
func (r *Registry) Active() Kind {
	return r.active
}

// Availability reports IsAvailable() for every registered adapter kind.
func (r *Registry) Availability(ctx context.Context) map[Kind]bool {
	out := make(map[Kind]bool, len(r.adapters))
	for kind, g := range r.adapters {
		out[kind] = g.adapter.IsAvailable(ctx)
	}
	return out
}

// Generate invokes the active adapter, retrying transient failures with
// bounded exponential backoff through the adapter's circuit breaker and
// rate limiter, and always appends a ModelCallStat — whether the call
// ultimately succeeded or not — before returning.
func (r *Registry) Generate(ctx context.Context, prompt, taskID string) (string, Stats, error) {
	g, ok := r.adapters[r.active]
	if !ok {
		return "", Stats{}, ErrNoAdapterAvailable
	}

	var code string
	var stats Stats

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	retryErr := backoff.Retry(func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		result, err := g.breaker.Execute(func() (any, error) {
			c, s, genErr := g.adapter.Generate(ctx, prompt, taskID)
			return [2]any{c, s}, genErr
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			return err
		}

		pair := result.([2]any)
		code = pair[0].(string)
		stats = pair[1].(Stats)
		return nil
	}, bo)

	if retryErr != nil {
		stats = Stats{Kind: g.adapter.Kind(), Name: g.adapter.Name(), Err: retryErr}
	}

	if appendErr := r.stats.AppendModelStat(ctx, store.ModelCallStat{
		TaskID:           taskID,
		Kind:             string(stats.Kind),
		Name:             stats.Name,
		PromptTokens:     stats.PromptTokens,
		CompletionTokens: stats.CompletionTokens,
		Elapsed:          stats.Elapsed,
		OK:               stats.OK,
		Error:            errString(stats.Err),
	}); appendErr != nil {
		r.logger.Error("failed to append model call stat", "error", appendErr.Error())
	}

	if retryErr != nil {
		return "", stats, fmt.Errorf("model: generate: %w", retryErr)
	}
	if code == "" {
		return "", stats, fmt.Errorf("model: generate: empty output")
	}
	return code, stats, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
