// Package engine executes pipeline runs: it walks the stage graph in
// dependency order through a bounded worker pool, persists per-stage state
// so interrupted runs resume without repeating completed work, and isolates
// failures to the affected dependency chain.
package engine

import (
	"context"
	"sync"

	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/graph"
)

// Inputs maps each declared input kind to its committed content
type Inputs map[graph.Kind]string

// Outputs maps each produced kind to its content. The engine commits every
// entry to the artifact store; a declared output kind missing from the map
// fails the stage.
type Outputs map[graph.Kind]string

// Executor runs one stage. Implementations are opaque to the engine: it
// hands them committed inputs and commits whatever they return. Execute must
// honor ctx cancellation when the owning stage is marked abortable.
type Executor interface {
	Execute(ctx context.Context, in Inputs) (Outputs, error)
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, in Inputs) (Outputs, error)

func (f ExecutorFunc) Execute(ctx context.Context, in Inputs) (Outputs, error) {
	return f(ctx, in)
}

// ExecutorRegistry maps handler names from pipeline definitions to executors
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewExecutorRegistry creates an empty executor registry
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[string]Executor)}
}

// Register binds a handler name to an executor. Re-registering a name
// replaces the previous executor.
func (r *ExecutorRegistry) Register(name string, ex Executor) error {
	if name == "" {
		return errors.New("executor name cannot be empty")
	}
	if ex == nil {
		return errors.Newf("executor %s cannot be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = ex
	return nil
}

// RegisterFunc binds a handler name to a plain function
func (r *ExecutorRegistry) RegisterFunc(name string, f ExecutorFunc) error {
	return r.Register(name, f)
}

// Get resolves a handler name. An unknown name is ErrNotFound: the pipeline
// definition references an executor nobody registered.
func (r *ExecutorRegistry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[name]
	if !ok {
		return nil, errors.NewNotFoundError("executor %s", name)
	}
	return ex, nil
}

// Names returns the registered handler names
func (r *ExecutorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}
