// Package runtime defines the polymorphic scripting-backend interface
// (§4.6) that lets two unrelated VM implementations — a register-based Go
// interpreter and a JS engine — sit behind one capability surface. Nothing
// in the rest of Hull imports a concrete backend directly; everything
// goes through the Runtime interface.
package runtime

import (
	"context"
	"errors"

	"hull/internal/capability"
	"hull/internal/manifest"
)

// Route is one registered (method, pattern, handler) triple as the app
// declared it during load.
type Route struct {
	Method  string
	Pattern string
	Handler string // opaque handler ref, resolved back into the VM by Dispatch
}

// KlRequest is the JSON-compatible shape both backends marshal into
// scripted code (§3's "Route Registration", §4.9's value-shapes).
type KlRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	Body    []byte            `json:"body"`
	Context map[string]any    `json:"context"`
}

// KlResponse is the JSON-compatible shape returned from scripted code.
type KlResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
	Context map[string]any    `json:"context"`
}

// Config configures backend initialization (§4.6): memory cap, per-request
// instruction budget (JS engine only), and the capability set the VM's
// host bindings are wired to.
type Config struct {
	MemoryCapBytes    int64
	InstructionBudget uint64
	Capabilities      *capability.Set
}

var (
	// ErrRouteRegistration is returned if WireRoutes is called before
	// LoadApp has populated the route table.
	ErrRouteRegistration = errors.New("runtime: no routes registered; call LoadApp first")
	// ErrNotInitialized is returned by LoadApp and Dispatch when they are
	// called before Init.
	ErrNotInitialized = errors.New("runtime: backend not initialized")
	// ErrAlreadyLoaded is returned if LoadApp is called more than once.
	ErrAlreadyLoaded = errors.New("runtime: app already loaded")
)

// Router is the subset of the external transport's registration API a
// backend needs to wire routes into (§4.9).
type Router interface {
	Register(method, pattern string, trampoline func(context.Context, KlRequest) (KlResponse, error)) error
}

// Runtime is the vtable every scripting backend implements (§4.6).
type Runtime interface {
	// Init creates the VM, installs the memory cap, strips dangerous
	// globals, and installs the stdlib-first require resolver.
	Init(cfg Config) error

	// LoadApp parses and evaluates the entry unit, which registers routes
	// and calls the manifest declaration API.
	LoadApp(ctx context.Context, source []byte) error

	// WireRoutes walks the routes LoadApp registered and hands each to
	// router as (method, pattern, trampoline).
	WireRoutes(router Router) error

	// ExtractManifest returns the manifest declared during LoadApp and
	// true, or a zero Declaration and false when none was declared,
	// implementing manifest.Source.
	ExtractManifest() (manifest.Declaration, bool, error)

	// ReleaseManifestRefs releases any VM-borrowed manifest strings. Safe
	// to call even for backends that never borrow.
	ReleaseManifestRefs()

	// SetCapabilities installs the capability set host bindings dereference
	// on every call. Callers set it once the manifest has been extracted
	// and its allowlists are known, any time before the event loop's first
	// Dispatch — LoadApp's declaration pass never reaches a capability
	// primitive, only a handler invocation does.
	SetCapabilities(caps *capability.Set)

	// Dispatch invokes the scripted handler bound to handlerRef with req,
	// returning its response.
	Dispatch(ctx context.Context, handlerRef string, req KlRequest) (KlResponse, error)

	// Destroy finalizes the VM, releasing every resource it holds.
	Destroy() error
}

// ManifestSource adapts any Runtime to manifest.Source, so
// manifest.Extract can be called uniformly regardless of backend.
type ManifestSource struct {
	RT Runtime
}

func (s ManifestSource) ReadDeclaration() (manifest.Declaration, bool, error) {
	return s.RT.ExtractManifest()
}

func (s ManifestSource) Release() { s.RT.ReleaseManifestRefs() }
