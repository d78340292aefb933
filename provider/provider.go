// Package provider defines the contract every model provider (drafter,
// verifier, or single-shot) is adapted to. Concrete vendor HTTP clients are
// out of scope for this module — callers register their own Adapter, or
// use the bundled mock adapter for tests and local development.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cascadehq/cascaderouter/core"
)

// Result is what an Adapter returns for one generation call.
type Result struct {
	Message      core.Message
	Usage        core.UsageDetails
	FinishReason string // "stop", "tool_calls", "length", "content_filter"
}

// Adapter is the uniform interface the router calls to reach a model.
// Implementations own their own authentication, marshaling, and vendor
// error mapping; they must translate vendor failures into a *core.RouterError
// with the right Kind so the cascade executor and circuit breaker can act
// on it (core.KindProviderTransient vs core.KindProviderPermanent).
type Adapter interface {
	// Name is the adapter's registered name, matching ModelConfig.Provider.
	Name() string
	// Generate executes one call against the given model, conversation
	// history, and tool set.
	Generate(ctx context.Context, model core.ModelConfig, messages []core.Message, tools []core.Tool) (Result, error)
	// IsAvailable reports whether the adapter is currently able to serve
	// requests (e.g. a health check, a circuit breaker not open).
	IsAvailable(ctx context.Context) bool
}

// BaseAdapter provides the common HTTP plumbing real adapters build on:
// a timeout-bound client, exponential-backoff retry, and consistent error
// mapping into this module's error taxonomy.
type BaseAdapter struct {
	HTTPClient *http.Client
	Logger     core.Logger

	MaxRetries int
	RetryDelay time.Duration
}

// NewBaseAdapter builds a BaseAdapter with a bounded HTTP client.
func NewBaseAdapter(timeout time.Duration, logger core.Logger) *BaseAdapter {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &BaseAdapter{
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// ExecuteWithRetry performs req with exponential-backoff retry on
// transient failures (network errors, 429, 5xx). 4xx other than 429 is
// returned immediately as non-retryable.
func (b *BaseAdapter) ExecuteWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		reqClone := req.Clone(ctx)

		resp, err := b.HTTPClient.Do(reqClone)
		if err == nil && resp.StatusCode < 400 {
			return resp, nil
		}
		if err == nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, core.NewError(core.KindProviderPermanent, "provider.ExecuteWithRetry", fmt.Errorf("status %d", resp.StatusCode))
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt < b.MaxRetries {
			shift := uint(attempt)
			if shift > 6 {
				shift = 6
			}
			delay := b.RetryDelay * time.Duration(1<<shift)

			b.Logger.Debug("retrying provider request", map[string]interface{}{
				"attempt":     attempt + 1,
				"max_retries": b.MaxRetries,
				"delay":       delay.String(),
				"error":       lastErr.Error(),
			})

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, core.NewError(core.KindCancelled, "provider.ExecuteWithRetry", ctx.Err())
			}
		}
	}

	return nil, core.NewError(core.KindProviderTransient, "provider.ExecuteWithRetry", lastErr)
}

// Registry is a concurrency-safe lookup of adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces the adapter under its own Name().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get looks up an adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}
