package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"hull/internal/logging"
	"hull/internal/runtime"
)

// shutdownGrace bounds how long RunEventLoop waits for in-flight
// requests to finish after ctx is canceled, mirroring the callback
// server's own graceful-shutdown window.
const shutdownGrace = 5 * time.Second

type registeredRoute struct {
	method  string
	pattern compiledPattern
	handler HandlerFunc
}

type registeredMiddleware struct {
	methodFilter string
	pathFilter   *compiledPattern
	mw           MiddlewareFunc
}

// HTTPTransport is Hull's default Transport implementor: a single
// net/http.Server behind a hand-rolled ":param" router, since nothing in
// the capability/runtime layers needs more than literal-and-capture
// matching and no third-party router library is part of the stack. Route
// dispatch is synchronous per the single-threaded cooperative model
// (§5): net/http's own goroutine-per-connection model is the only
// concurrency here, and it exists beneath this package, not within the
// scripting VM — at most one request is ever inside a runtime backend's
// Dispatch at a time because serveHTTP holds dispatchMu around the whole
// middleware-and-handler chain (the backends release their own mutex
// before calling into the VM, so they do not serialize dispatch).
type HTTPTransport struct {
	Addr string

	routes      []registeredRoute
	middlewares []registeredMiddleware
	server      *http.Server
	dispatchMu  sync.Mutex
}

// NewHTTPTransport returns a Transport bound to addr (e.g. "127.0.0.1:8080").
func NewHTTPTransport(addr string) *HTTPTransport {
	return &HTTPTransport{Addr: addr}
}

func (t *HTTPTransport) Register(method, pattern string, handler HandlerFunc) error {
	if handler == nil {
		return errors.New("router: nil handler")
	}
	t.routes = append(t.routes, registeredRoute{method: method, pattern: compilePattern(pattern), handler: handler})
	return nil
}

func (t *HTTPTransport) RegisterMiddleware(methodFilter, pathFilter string, mw MiddlewareFunc) error {
	if mw == nil {
		return errors.New("router: nil middleware")
	}
	var pf *compiledPattern
	if pathFilter != "" {
		compiled := compilePattern(pathFilter)
		pf = &compiled
	}
	t.middlewares = append(t.middlewares, registeredMiddleware{methodFilter: methodFilter, pathFilter: pf, mw: mw})
	return nil
}

func (t *HTTPTransport) RunEventLoop(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", t.serveHTTP)

	t.server = &http.Server{Addr: t.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := t.server.Shutdown(shutdownCtx); err != nil {
			t.server.Close()
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (t *HTTPTransport) serveHTTP(w http.ResponseWriter, r *http.Request) {
	route, params, ok := t.matchRoute(r.Method, r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	req := runtime.KlRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: headers,
		Params:  params,
		Body:    body,
		Context: map[string]any{},
	}

	final := t.wrapMiddleware(r.Method, r.URL.Path, route.handler)
	t.dispatchMu.Lock()
	resp, err := final(r.Context(), req)
	t.dispatchMu.Unlock()
	if err != nil {
		logging.RuntimeDebug("router(http): handler error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// wrapMiddleware builds the handler chain applicable to (method, path),
// outermost-registered-first, so request-context mutations (§4.9 (iv))
// flow into the opaque Context slot before the scripted handler sees it
// and back out before the next middleware in the chain resumes.
func (t *HTTPTransport) wrapMiddleware(method, path string, handler HandlerFunc) HandlerFunc {
	chain := handler
	for i := len(t.middlewares) - 1; i >= 0; i-- {
		m := t.middlewares[i]
		if m.methodFilter != "" && m.methodFilter != method {
			continue
		}
		if m.pathFilter != nil {
			if _, ok := m.pathFilter.match(path); !ok {
				continue
			}
		}
		chain = m.mw(chain)
	}
	return chain
}

func (t *HTTPTransport) matchRoute(method, path string) (registeredRoute, map[string]string, bool) {
	// Exact-method routes are preferred; ties broken by registration
	// order, which WireRoutes preserves from the app's declared order.
	for _, r := range t.routes {
		if r.method != method {
			continue
		}
		if params, ok := r.pattern.match(path); ok {
			return r, params, true
		}
	}
	return registeredRoute{}, nil, false
}
