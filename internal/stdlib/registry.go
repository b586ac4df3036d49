// Package stdlib is the embedded module registry both scripting backends
// consult before any filesystem-backed `require`/`import` resolution
// (§2 L6, §4.6's "install a require resolver that consults the stdlib
// registry first"). There is no filesystem fallback wired here: scripted
// apps reach the host only through internal/capability, and nothing in
// Hull's sandbox model hands a script its own arbitrary module path off
// disk, so "before any filesystem lookup" is satisfied by there being no
// lookup after it either.
package stdlib

import (
	"fmt"
	"sort"
	"sync"

	"github.com/traefik/yaegi/interp"
)

// Module is one embedded stdlib module, bound into both backends.
// YaegiExports and JSSource are independent: a module only needs to
// supply the side a given backend requires.
type Module struct {
	// Name is the import/require path scripted code uses, e.g. "assert".
	Name string
	// YaegiExports is merged into Backend A's interp.Use call at Init time,
	// keyed "hull/stdlib/<Name>" so it can't collide with a real package
	// path.
	YaegiExports interp.Exports
	// JSSource is evaluated once, lazily, the first time Backend B's
	// require("<Name>") resolves this module; its CommonJS-style
	// module.exports becomes the require() return value.
	JSSource string
}

// Registry holds every embedded module known to the running process. It
// is built once at process startup (see Default) and is read-only after
// that: modules don't get added at runtime.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register adds m to the registry. It panics on a duplicate name since
// registration only ever happens at init time from this package's own
// code — a collision there is a programming error, not a runtime
// condition a caller can recover from.
func (r *Registry) Register(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.Name]; exists {
		panic(fmt.Sprintf("stdlib: module %q already registered", m.Name))
	}
	r.modules[m.Name] = m
}

// Lookup returns the module registered under name, if any.
func (r *Registry) Lookup(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Names returns every registered module name, sorted, for diagnostics
// (e.g. the `hull inspect` subcommand).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// YaegiExports flattens every registered module's Go-side exports into a
// single interp.Exports suitable for one interp.Use call, keyed under
// "hull/stdlib/<name>" so scripted source imports e.g. "hull/stdlib/assert".
func (r *Registry) YaegiExports() interp.Exports {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(interp.Exports, len(r.modules))
	for name, m := range r.modules {
		if m.YaegiExports == nil {
			continue
		}
		for pkgPath, symbols := range m.YaegiExports {
			out[pkgPath] = symbols
		}
		_ = name
	}
	return out
}

// Default is the process-wide registry every backend's Init wires in.
// It is built lazily so module registration (below) only runs once, on
// first use, regardless of how many backends start.
var defaultOnce sync.Once
var defaultRegistry *Registry

// Default returns the shared registry, populated with Hull's built-in
// modules on first call.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerBuiltins(defaultRegistry)
	})
	return defaultRegistry
}
