package flow

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xraph/flowsync"
)

// binding pairs a registered name with its lazily built Task.
type binding struct {
	name    string
	factory Factory

	mu   sync.Mutex
	task Task
}

// instance builds the Task on first use. A failed construction is not
// cached so a later dispatch can retry it.
func (b *binding) instance() (Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.task != nil {
		return b.task, nil
	}
	t, err := b.factory()
	if err != nil {
		return nil, fmt.Errorf("flow: construct %q: %w", b.name, err)
	}
	if t == nil {
		return nil, fmt.Errorf("flow: construct %q: factory returned nil task", b.name)
	}
	b.task = t
	return t, nil
}

// Registry maps flow names to Tasks. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*binding
	sealed   bool
}

// NewRegistry creates an empty flow registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*binding)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RegisterAll binds every definition or none of them. It fails on an empty
// name, a nil factory, a name already registered (in this call or earlier),
// or a sealed registry.
func (r *Registry) RegisterAll(defs ...Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return flowsync.ErrRegistrySealed
	}

	pending := make(map[string]*binding, len(defs))
	for _, def := range defs {
		key := normalize(def.Name)
		if key == "" {
			return fmt.Errorf("flow: register: empty name")
		}
		if def.New == nil {
			return fmt.Errorf("flow: register %q: nil factory", def.Name)
		}
		if _, dup := r.bindings[key]; dup {
			return fmt.Errorf("flow: register %q: %w", def.Name, flowsync.ErrDuplicateFlow)
		}
		if _, dup := pending[key]; dup {
			return fmt.Errorf("flow: register %q: %w", def.Name, flowsync.ErrDuplicateFlow)
		}
		pending[key] = &binding{name: strings.TrimSpace(def.Name), factory: def.New}
	}

	for key, b := range pending {
		r.bindings[key] = b
	}
	return nil
}

// Freeze seals the registry against further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry accepts registrations.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Resolve returns the Task bound to name. Unregistered names return a
// *UnknownFlowError carrying the requested name.
func (r *Registry) Resolve(name string) (Task, error) {
	key := normalize(name)

	r.mu.RLock()
	b, ok := r.bindings[key]
	sealed := r.sealed
	r.mu.RUnlock()

	if !sealed {
		r.Freeze()
	}
	if !ok {
		return nil, &UnknownFlowError{Name: name}
	}
	return b.instance()
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[normalize(name)]
	return ok
}

// Names returns the registered names, as declared, in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		names = append(names, b.name)
	}
	sort.Strings(names)
	return names
}
