// Package router is the L9 bridge between the capability/runtime layers
// and the external HTTP transport (§4.9). The transport itself — request
// parsing, the event loop, the connection pool — is an external
// collaborator reached only through the Transport interface; this
// package's job is translating that collaborator's shape into the
// KlRequest/KlResponse values the scripting backends speak, and back.
package router

import (
	"context"
	"errors"

	"hull/internal/runtime"
)

// HandlerFunc is a fully resolved request handler: a scripted route
// handler wrapped by a backend's Dispatch, or a bridge-level middleware
// continuation.
type HandlerFunc func(context.Context, runtime.KlRequest) (runtime.KlResponse, error)

// MiddlewareFunc wraps a HandlerFunc with pre/post behavior. It decides
// whether to call next at all, letting it short-circuit a request (e.g.
// on a failed precondition) without reaching the scripted handler.
type MiddlewareFunc func(next HandlerFunc) HandlerFunc

// Transport is the external collaborator (§4.9): request/response
// parsing, the event loop, and the connection pool live entirely on the
// other side of this interface.
type Transport interface {
	// Register binds pattern (literal segments plus ":param" captures)
	// for method to handler.
	Register(method, pattern string, handler HandlerFunc) error
	// RegisterMiddleware installs a middleware that applies to every
	// request whose method matches methodFilter ("" means any) and whose
	// path matches pathFilter (a pattern in the same ":param" syntax, ""
	// means any path).
	RegisterMiddleware(methodFilter, pathFilter string, mw MiddlewareFunc) error
	// RunEventLoop blocks dispatching requests until ctx is canceled or
	// the transport is asked to stop, then returns.
	RunEventLoop(ctx context.Context) error
}

var (
	// ErrNoBackend is returned by every Bridge method when the Bridge has
	// no Transport attached.
	ErrNoBackend = errors.New("router: no transport attached")
)

// Bridge adapts a runtime.Runtime's registered routes onto a Transport.
// It only forwards: route and middleware registrations and the event loop
// go to the Transport unchanged. Building KlRequest values and writing
// responses happen in the Transport, and invoking the scripted handler
// happens in the backend's Dispatch.
type Bridge struct {
	Transport Transport
}

// NewBridge returns a Bridge that registers onto transport.
func NewBridge(transport Transport) *Bridge {
	return &Bridge{Transport: transport}
}

// Register implements runtime.Router: it is handed directly to a
// backend's WireRoutes call, so every (method, pattern, trampoline)
// triple the backend produces lands on b.Transport unchanged.
func (b *Bridge) Register(method, pattern string, trampoline func(context.Context, runtime.KlRequest) (runtime.KlResponse, error)) error {
	if b.Transport == nil {
		return ErrNoBackend
	}
	return b.Transport.Register(method, pattern, HandlerFunc(trampoline))
}

// Use registers a middleware on the underlying transport, scoped by
// method and path pattern.
func (b *Bridge) Use(methodFilter, pathFilter string, mw MiddlewareFunc) error {
	if b.Transport == nil {
		return ErrNoBackend
	}
	return b.Transport.RegisterMiddleware(methodFilter, pathFilter, mw)
}

// Run enters the event loop and blocks until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	if b.Transport == nil {
		return ErrNoBackend
	}
	return b.Transport.RunEventLoop(ctx)
}
