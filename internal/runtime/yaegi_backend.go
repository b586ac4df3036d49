package runtime

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"

	"github.com/traefik/yaegi/interp"
	yaegistdlib "github.com/traefik/yaegi/stdlib"

	"hull/internal/capability"
	"hull/internal/logging"
	"hull/internal/manifest"
	"hull/internal/stdlib"
)

// yaegiAllowedPackages is the stdlib subset Backend A's require resolver
// exposes. Anything not in this list (os, os/exec, net, net/http,
// syscall, unsafe, plugin) is unreachable from scripted source — the
// capability layer, not a stdlib import, is the only way to touch the
// host.
var yaegiAllowedPackages = map[string]bool{
	"strings": true, "strconv": true, "fmt": true, "math": true,
	"regexp": true, "encoding/json": true, "encoding/base64": true,
	"time": true, "sort": true, "bytes": true, "errors": true,
}

// yaegiHeapCap is Backend A's default heap cap (§4.6: "custom allocator
// caps heap at 64 MiB"), used when Config.MemoryCapBytes is 0.
const yaegiHeapCap = 64 << 20

// ErrHeapCapExceeded is returned by a capability binding once a script's
// cumulative host-attributable allocation would exceed its heap cap.
var ErrHeapCapExceeded = errors.New("runtime(yaegi): heap cap exceeded")

// YaegiBackend is Backend A: a register-based Go interpreter (traefik/
// yaegi) standing in for Hull's embedded scripting language. It is
// sandboxed by import allowlist rather than a true memory-accounting
// allocator — yaegi has no allocator hook of its own, so in-script
// allocation (locals, string concatenation, slice growth) is never
// observed. heapUsed instead accounts the one kind of allocation the host
// controls: bytes a capability binding (FS.Read, DB.Query, HTTP.Request)
// hands back into the script. That is a genuine but partial enforcement
// of the heap cap, not the full-allocator accounting the name "heap cap"
// implies — a script that only allocates internally (e.g. builds a huge
// string in a loop) is invisible to it.
type YaegiBackend struct {
	mu          sync.Mutex
	interp      *interp.Interpreter
	cfg         Config
	routes      []Route
	declarer    manifest.Declarer
	declared    manifest.Declaration
	hasManifest bool
	heapUsed    int64
}

// NewYaegiBackend returns an uninitialized Backend A runtime.
func NewYaegiBackend() *YaegiBackend { return &YaegiBackend{} }

func (b *YaegiBackend) Init(cfg Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := interp.New(interp.Options{})
	symbols := interp.Exports{}
	for key, pkg := range yaegistdlib.Symbols {
		// Keys are "<import path>/<package name>", e.g. "encoding/json/json".
		if yaegiAllowedPackages[path.Dir(key)] {
			symbols[key] = pkg
		}
	}
	if err := i.Use(symbols); err != nil {
		return fmt.Errorf("runtime(yaegi): loading stdlib symbols: %w", err)
	}
	if err := i.Use(hostBindings(b)); err != nil {
		return fmt.Errorf("runtime(yaegi): installing host bindings: %w", err)
	}
	if err := i.Use(stdlib.Default().YaegiExports()); err != nil {
		return fmt.Errorf("runtime(yaegi): installing stdlib registry: %w", err)
	}

	b.interp = i
	b.cfg = cfg
	if b.cfg.MemoryCapBytes == 0 {
		b.cfg.MemoryCapBytes = yaegiHeapCap
	}
	logging.RuntimeDebug("runtime(yaegi): initialized, heap_cap=%d", b.cfg.MemoryCapBytes)
	return nil
}

func (b *YaegiBackend) LoadApp(ctx context.Context, source []byte) error {
	b.mu.Lock()
	if b.interp == nil {
		b.mu.Unlock()
		return ErrNotInitialized
	}
	if len(b.routes) > 0 || b.hasManifest {
		b.mu.Unlock()
		return ErrAlreadyLoaded
	}
	i := b.interp
	b.mu.Unlock()

	// Evaluated outside the lock: the host bindings scripted code calls
	// during evaluation (recordRoute, recordManifest) acquire b.mu
	// themselves, and b.mu is not reentrant.
	if _, err := i.EvalWithContext(ctx, string(source)); err != nil {
		return fmt.Errorf("runtime(yaegi): evaluating app source: %w", err)
	}

	b.mu.Lock()
	logging.RuntimeDebug("runtime(yaegi): app loaded, routes=%d manifest=%v", len(b.routes), b.hasManifest)
	b.mu.Unlock()
	return nil
}

func (b *YaegiBackend) WireRoutes(router Router) error {
	b.mu.Lock()
	routes := append([]Route{}, b.routes...)
	b.mu.Unlock()

	if len(routes) == 0 {
		return ErrRouteRegistration
	}
	for _, r := range routes {
		handlerRef := r.Handler
		err := router.Register(r.Method, r.Pattern, func(ctx context.Context, req KlRequest) (KlResponse, error) {
			return b.Dispatch(ctx, handlerRef, req)
		})
		if err != nil {
			return fmt.Errorf("runtime(yaegi): registering route %s %s: %w", r.Method, r.Pattern, err)
		}
	}
	return nil
}

func (b *YaegiBackend) ExtractManifest() (manifest.Declaration, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.declared, b.hasManifest, nil
}

// ReleaseManifestRefs is a no-op for Backend A: the host binding that
// records a declaration (see hostBindings) copies every string onto the
// host heap immediately, so there is nothing borrowed from the VM to
// release.
func (b *YaegiBackend) ReleaseManifestRefs() {}

func (b *YaegiBackend) Dispatch(ctx context.Context, handlerRef string, req KlRequest) (KlResponse, error) {
	b.mu.Lock()
	i := b.interp
	b.mu.Unlock()
	if i == nil {
		return KlResponse{}, ErrNotInitialized
	}

	fnVal, err := i.Eval(handlerRef)
	if err != nil {
		return KlResponse{}, fmt.Errorf("runtime(yaegi): resolving handler %q: %w", handlerRef, err)
	}
	handler, ok := fnVal.Interface().(func(KlRequest) (KlResponse, error))
	if !ok {
		return KlResponse{}, fmt.Errorf("runtime(yaegi): handler %q has wrong signature", handlerRef)
	}

	select {
	case <-ctx.Done():
		return KlResponse{}, ctx.Err()
	default:
	}
	return handler(req)
}

// accountAlloc adds n bytes to the running heap total and fails once that
// total would exceed the configured cap, per §4.6's "memory exhaustion
// returns allocation failure". Failed allocations are not added to the
// total: they were never handed to the script.
func (b *YaegiBackend) accountAlloc(n int) error {
	if n <= 0 {
		return nil
	}
	limit := b.cfg.MemoryCapBytes
	for {
		cur := atomic.LoadInt64(&b.heapUsed)
		next := cur + int64(n)
		if next > limit {
			return ErrHeapCapExceeded
		}
		if atomic.CompareAndSwapInt64(&b.heapUsed, cur, next) {
			return nil
		}
	}
}

// SetCapabilities installs caps for every subsequent host binding call.
func (b *YaegiBackend) SetCapabilities(caps *capability.Set) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Capabilities = caps
}

func (b *YaegiBackend) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.interp = nil
	b.routes = nil
	logging.RuntimeDebug("runtime(yaegi): destroyed")
	return nil
}

// recordRoute and recordManifest are called by the host bindings exposed
// to scripted code; see yaegi_hostbindings.go.
func (b *YaegiBackend) recordRoute(method, pattern, handlerRef string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes = append(b.routes, Route{Method: method, Pattern: pattern, Handler: handlerRef})
}

func (b *YaegiBackend) recordManifest(decl manifest.Declaration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.declarer.Declare(); err != nil {
		return err
	}
	b.declared = decl
	b.hasManifest = true
	return nil
}
