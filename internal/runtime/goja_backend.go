package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"hull/internal/capability"
	"hull/internal/logging"
	"hull/internal/manifest"
	"hull/internal/stdlib"
)

// defaultInstructionBudget is the per-request instruction budget
// (§4.6: "default 10M instructions, configurable").
const defaultInstructionBudget = 10_000_000

// maxCallStackSize is Backend B's stack cap (§4.6: "stack cap"), bounding
// unbounded scripted recursion independently of the instruction budget.
const maxCallStackSize = 256

// estimatedOpsPerSecond approximates goja's tree-walking interpreter
// throughput for a typical handler body. goja exposes no per-bytecode-op
// counter, so the instruction budget is enforced as a wall-clock deadline
// derived from this estimate rather than an exact op count — a script
// that spins without yielding is interrupted close to, not exactly at,
// its configured instruction budget.
const estimatedOpsPerSecond = 20_000_000

// errInstructionBudgetExceeded is the value armBudget's watchdog hands to
// vm.Interrupt; goja wraps it in an *goja.InterruptedError that LoadApp
// and Dispatch unwrap to distinguish a budget trip from an ordinary
// script error (§8: "Instruction cap exceeded mid-handler — handler
// errors, response is 500").
var errInstructionBudgetExceeded = errors.New("runtime(goja): instruction budget exceeded")

// GojaBackend is Backend B: a full JS engine (dop251/goja). Unlike Backend
// A it gets a real per-call instruction budget via goja's interrupt
// callback, and disables eval-from-string entirely rather than merely
// restricting imports. It installs no memory cap: Config.MemoryCapBytes
// is not read by this backend.
type GojaBackend struct {
	mu          sync.Mutex
	vm          *goja.Runtime
	cfg         Config
	routes      []Route
	declarer    manifest.Declarer
	declared    manifest.Declaration
	hasManifest bool
}

// NewGojaBackend returns an uninitialized Backend B runtime.
func NewGojaBackend() *GojaBackend { return &GojaBackend{} }

func (b *GojaBackend) Init(cfg Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	vm.SetMaxCallStackSize(maxCallStackSize)

	// Dangerous globals removal: no process, no dynamic module loading, no
	// eval-from-string. `new Function("code")` compiles a string into a
	// callable exactly like eval does, so it must go too. goja has no
	// os/fs bindings by default, so the removal here is about the
	// language-level eval forms, not Go stdlib exposure.
	if err := vm.GlobalObject().Delete("eval"); err != nil {
		return fmt.Errorf("runtime(goja): removing eval: %w", err)
	}
	if err := vm.GlobalObject().Delete("Function"); err != nil {
		return fmt.Errorf("runtime(goja): removing Function: %w", err)
	}

	if cfg.InstructionBudget == 0 {
		cfg.InstructionBudget = defaultInstructionBudget
	}
	b.vm = vm
	b.cfg = cfg

	if err := installHostObject(vm, b); err != nil {
		return fmt.Errorf("runtime(goja): installing host object: %w", err)
	}
	if err := stdlib.InstallRequire(vm, stdlib.Default()); err != nil {
		return fmt.Errorf("runtime(goja): installing require resolver: %w", err)
	}

	logging.RuntimeDebug("runtime(goja): initialized, instruction_budget=%d", cfg.InstructionBudget)
	return nil
}

func (b *GojaBackend) LoadApp(ctx context.Context, source []byte) error {
	b.mu.Lock()
	if b.vm == nil {
		b.mu.Unlock()
		return ErrNotInitialized
	}
	if len(b.routes) > 0 || b.hasManifest {
		b.mu.Unlock()
		return ErrAlreadyLoaded
	}
	vm := b.vm
	timer := b.armBudget(vm)
	b.mu.Unlock()

	// Evaluated outside the lock: the host object's methods
	// (recordRoute, recordManifest) acquire b.mu themselves from inside
	// the script's execution, and b.mu is not reentrant.
	_, err := vm.RunString(string(source))
	timer.Stop()
	vm.ClearInterrupt()
	if err != nil {
		if isBudgetExceeded(err) {
			return fmt.Errorf("runtime(goja): evaluating app source: %w", errInstructionBudgetExceeded)
		}
		return fmt.Errorf("runtime(goja): evaluating app source: %w", err)
	}

	b.mu.Lock()
	logging.RuntimeDebug("runtime(goja): app loaded, routes=%d manifest=%v", len(b.routes), b.hasManifest)
	b.mu.Unlock()
	return nil
}

func (b *GojaBackend) WireRoutes(router Router) error {
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
			return fmt.Errorf("runtime(goja): registering route %s %s: %w", r.Method, r.Pattern, err)
		}
	}
	return nil
}

func (b *GojaBackend) ExtractManifest() (manifest.Declaration, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.declared, b.hasManifest, nil
}

// ReleaseManifestRefs drains the microtask queue once, matching §4.6's
// "microtask queue drained between requests" applied at the one point
// where the VM is known to be between load and first dispatch.
func (b *GojaBackend) ReleaseManifestRefs() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.vm != nil {
		b.drainMicrotasksLocked()
	}
}

func (b *GojaBackend) Dispatch(ctx context.Context, handlerRef string, req KlRequest) (KlResponse, error) {
	b.mu.Lock()
	if b.vm == nil {
		b.mu.Unlock()
		return KlResponse{}, ErrNotInitialized
	}
	vm := b.vm

	fnVal := vm.Get(handlerRef)
	if fnVal == nil || goja.IsUndefined(fnVal) {
		b.mu.Unlock()
		return KlResponse{}, fmt.Errorf("runtime(goja): handler %q not found", handlerRef)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		b.mu.Unlock()
		return KlResponse{}, fmt.Errorf("runtime(goja): handler %q is not callable", handlerRef)
	}
	timer := b.armBudget(vm)
	b.mu.Unlock()

	// Called outside the lock: handler execution may call back into host
	// object methods that acquire b.mu themselves.
	result, err := fn(goja.Undefined(), vm.ToValue(req))
	timer.Stop()
	vm.ClearInterrupt()
	if err != nil {
		if isBudgetExceeded(err) {
			return KlResponse{}, fmt.Errorf("runtime(goja): handler %q: %w", handlerRef, errInstructionBudgetExceeded)
		}
		return KlResponse{}, fmt.Errorf("runtime(goja): handler %q: %w", handlerRef, err)
	}

	var resp KlResponse
	if err := vm.ExportTo(result, &resp); err != nil {
		return KlResponse{}, fmt.Errorf("runtime(goja): marshaling handler response: %w", err)
	}

	// Microtask queue drained once per request (§4.6), after the handler
	// returns but before the next request can be dispatched.
	b.mu.Lock()
	b.drainMicrotasksLocked()
	b.mu.Unlock()
	return resp, nil
}

// SetCapabilities installs caps for every subsequent host binding call.
// Safe to call after Init and before the first Dispatch; host bindings
// read b.cfg.Capabilities fresh on each call rather than capturing it at
// Init time, so there is no stale-pointer hazard.
func (b *GojaBackend) SetCapabilities(caps *capability.Set) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Capabilities = caps
}

func (b *GojaBackend) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.vm != nil {
		b.vm.ClearInterrupt()
	}
	b.vm = nil
	b.routes = nil
	logging.RuntimeDebug("runtime(goja): destroyed")
	return nil
}

// armBudget starts a watchdog timer that interrupts vm once the
// configured instruction budget's estimated wall-clock equivalent
// elapses. goja only checks for a pending interrupt between bytecode
// ops, so a call that is still running when the timer fires unwinds with
// an *goja.InterruptedError carrying errInstructionBudgetExceeded.
//
// Callers must Stop the returned timer as soon as the guarded call
// returns, success or error, so it can never fire into a later call on
// the same VM.
func (b *GojaBackend) armBudget(vm *goja.Runtime) *time.Timer {
	budget := b.cfg.InstructionBudget
	if budget == 0 {
		budget = defaultInstructionBudget
	}
	deadline := time.Duration(float64(budget) / estimatedOpsPerSecond * float64(time.Second))
	return time.AfterFunc(deadline, func() {
		vm.Interrupt(errInstructionBudgetExceeded)
	})
}

// isBudgetExceeded reports whether err is the *goja.InterruptedError
// armBudget's watchdog raises, as opposed to an ordinary interrupt or
// script error.
func isBudgetExceeded(err error) bool {
	var ie *goja.InterruptedError
	if !errors.As(err, &ie) {
		return false
	}
	v, ok := ie.Value().(error)
	return ok && errors.Is(v, errInstructionBudgetExceeded)
}

func (b *GojaBackend) drainMicrotasksLocked() {
	// goja resolves promises synchronously as soon as their executor
	// returns, so there is no separate queue to pump here; this hook
	// exists so a future promise-based stdlib module has a defined place
	// to flush into.
}

func (b *GojaBackend) recordRoute(method, pattern, handlerRef string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes = append(b.routes, Route{Method: method, Pattern: pattern, Handler: handlerRef})
}

func (b *GojaBackend) recordManifest(decl manifest.Declaration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.declarer.Declare(); err != nil {
		return err
	}
	b.declared = decl
	b.hasManifest = true
	return nil
}
