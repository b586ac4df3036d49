package router

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/runtime"
)

func TestHTTPTransportDispatchesMatchingRoute(t *testing.T) {
	tr := NewHTTPTransport("127.0.0.1:0")
	require.NoError(t, tr.Register("GET", "/users/:id", func(ctx context.Context, req runtime.KlRequest) (runtime.KlResponse, error) {
		return runtime.KlResponse{Status: 200, Body: []byte("user:" + req.Params["id"])}, nil
	}))

	req := httptest.NewRequest("GET", "/users/42", nil)
	rec := httptest.NewRecorder()
	tr.serveHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "user:42", rec.Body.String())
}

func TestHTTPTransportUnmatchedRouteIs404(t *testing.T) {
	tr := NewHTTPTransport("127.0.0.1:0")
	req := httptest.NewRequest("GET", "/nowhere", nil)
	rec := httptest.NewRecorder()
	tr.serveHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestHTTPTransportRunsMiddlewareChain(t *testing.T) {
	tr := NewHTTPTransport("127.0.0.1:0")
	require.NoError(t, tr.Register("GET", "/ping", func(ctx context.Context, req runtime.KlRequest) (runtime.KlResponse, error) {
		return runtime.KlResponse{Status: 200, Headers: map[string]string{}}, nil
	}))
	require.NoError(t, tr.RegisterMiddleware("GET", "", func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req runtime.KlRequest) (runtime.KlResponse, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return resp, err
			}
			resp.Headers["X-Middleware"] = "applied"
			return resp, nil
		}
	}))

	req := httptest.NewRequest("GET", "/ping", nil)
	rec := httptest.NewRecorder()
	tr.serveHTTP(rec, req)

	assert.Equal(t, "applied", rec.Header().Get("X-Middleware"))
}

func TestHTTPTransportMiddlewareSkippedOnMethodMismatch(t *testing.T) {
	tr := NewHTTPTransport("127.0.0.1:0")
	require.NoError(t, tr.Register("POST", "/ping", func(ctx context.Context, req runtime.KlRequest) (runtime.KlResponse, error) {
		return runtime.KlResponse{Status: 200, Headers: map[string]string{}}, nil
	}))
	require.NoError(t, tr.RegisterMiddleware("GET", "", func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req runtime.KlRequest) (runtime.KlResponse, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return resp, err
			}
			resp.Headers["X-Middleware"] = "applied"
			return resp, nil
		}
	}))

	req := httptest.NewRequest("POST", "/ping", strings.NewReader(""))
	rec := httptest.NewRecorder()
	tr.serveHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("X-Middleware"))
}

func TestHTTPTransportPassesRequestBody(t *testing.T) {
	tr := NewHTTPTransport("127.0.0.1:0")
	require.NoError(t, tr.Register("POST", "/echo", func(ctx context.Context, req runtime.KlRequest) (runtime.KlResponse, error) {
		return runtime.KlResponse{Status: 200, Body: req.Body}, nil
	}))

	req := httptest.NewRequest("POST", "/echo", strings.NewReader("hello"))
	rec := httptest.NewRecorder()
	tr.serveHTTP(rec, req)

	assert.Equal(t, "hello", rec.Body.String())
}
