package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/runtime"
)

type fakeTransport struct {
	registered  []string
	middlewares []string
	runErr      error
}

func (f *fakeTransport) Register(method, pattern string, handler HandlerFunc) error {
	f.registered = append(f.registered, method+" "+pattern)
	return nil
}

func (f *fakeTransport) RegisterMiddleware(methodFilter, pathFilter string, mw MiddlewareFunc) error {
	f.middlewares = append(f.middlewares, methodFilter+"|"+pathFilter)
	return nil
}

func (f *fakeTransport) RunEventLoop(ctx context.Context) error {
	return f.runErr
}

func TestBridgeRegisterForwardsToTransport(t *testing.T) {
	ft := &fakeTransport{}
	b := NewBridge(ft)

	err := b.Register("GET", "/ping", func(ctx context.Context, req runtime.KlRequest) (runtime.KlResponse, error) {
		return runtime.KlResponse{Status: 200}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /ping"}, ft.registered)
}

func TestBridgeRegisterWithoutTransportFails(t *testing.T) {
	b := &Bridge{}
	err := b.Register("GET", "/ping", func(ctx context.Context, req runtime.KlRequest) (runtime.KlResponse, error) {
		return runtime.KlResponse{}, nil
	})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestBridgeUseForwardsToTransport(t *testing.T) {
	ft := &fakeTransport{}
	b := NewBridge(ft)
	require.NoError(t, b.Use("GET", "/users/:id", func(next HandlerFunc) HandlerFunc { return next }))
	assert.Equal(t, []string{"GET|/users/:id"}, ft.middlewares)
}

func TestBridgeRunForwardsToTransport(t *testing.T) {
	wantErr := errors.New("boom")
	ft := &fakeTransport{runErr: wantErr}
	b := NewBridge(ft)
	err := b.Run(context.Background())
	assert.ErrorIs(t, err, wantErr)
}
