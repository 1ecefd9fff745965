// Package host provides reference implementations of vm.Host: an
// in-memory Table, a SQLite-backed Store, and the builtin methods both
// expose to expressions.
package host

import (
	"sort"
	"sync"

	"github.com/chazu/libeval/vm"
)

// Funcs is a concurrency-safe registry of named host functions. Hosts
// embed it to satisfy the ResolveFunction half of vm.Host.
type Funcs struct {
	mu    sync.RWMutex
	funcs map[string]vm.Func
}

// NewFuncs returns a registry preloaded with the builtin methods.
func NewFuncs() *Funcs {
	f := &Funcs{funcs: make(map[string]vm.Func)}
	RegisterBuiltins(f)
	return f
}

// Register binds name to fn, replacing any previous binding.
func (f *Funcs) Register(name string, fn vm.Func) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.funcs == nil {
		f.funcs = make(map[string]vm.Func)
	}
	f.funcs[name] = fn
}

// ResolveFunction returns the function bound to name, or nil.
func (f *Funcs) ResolveFunction(name string) vm.Func {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.funcs[name]
}

// Functions returns the registered names, sorted.
func (f *Funcs) Functions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.funcs))
	for name := range f.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
