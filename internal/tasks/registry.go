package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Kwargs are the keyword arguments a task passes to its callable.
type Kwargs map[string]any

// String returns kwarg name as a string, failing if it is absent.
func (k Kwargs) String(name string) (string, error) {
	v, ok := k[name]
	if !ok || v == nil {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	return fmt.Sprint(v), nil
}

// Callable is a named function a generated pipeline task invokes.
type Callable func(ctx context.Context, kwargs Kwargs) error

// Registry maps callable names to implementations.
type Registry struct {
	mu        sync.RWMutex
	callables map[string]Callable
	now       func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		callables: make(map[string]Callable),
		now:       time.Now,
	}
}

// Register adds fn under name. Registering a name twice is an error.
func (r *Registry) Register(name string, fn Callable) error {
	if name == "" {
		return fmt.Errorf("callable name is empty")
	}
	if fn == nil {
		return fmt.Errorf("callable %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callables[name]; exists {
		return fmt.Errorf("callable %q already registered", name)
	}
	r.callables[name] = fn
	return nil
}

// Lookup returns the callable registered under name.
func (r *Registry) Lookup(name string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.callables[name]
	return fn, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered callable names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callables))
	for name := range r.callables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the callable registered under name. The run-date arguments
// "ds" and "ds_nodash" are filled in from the current date when absent.
func (r *Registry) Invoke(ctx context.Context, name string, kwargs Kwargs) error {
	fn, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown callable %q", name)
	}

	args := make(Kwargs, len(kwargs)+2)
	for k, v := range kwargs {
		args[k] = v
	}
	today := r.now()
	if _, ok := args["ds"]; !ok {
		args["ds"] = today.Format("2006-01-02")
	}
	if _, ok := args["ds_nodash"]; !ok {
		args["ds_nodash"] = today.Format("20060102")
	}

	if err := fn(ctx, args); err != nil {
		return fmt.Errorf("callable %q: %w", name, err)
	}
	return nil
}

// Default returns a registry holding the ETL helpers referenced by the
// generated pipelines.
func Default(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()
	for name, fn := range map[string]Callable{
		"extract_helper":   extractHelper(logger),
		"transform_helper": transformHelper(logger),
		"load_helper":      loadHelper(logger),
	} {
		if err := r.Register(name, fn); err != nil {
			panic(err)
		}
	}
	return r
}
