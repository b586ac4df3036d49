package runtime

import (
	"encoding/json"
	"reflect"

	"github.com/traefik/yaegi/interp"

	"hull/internal/manifest"
)

// hostBindings exposes the host-side "hull" package to scripted Go source
// running under Backend A: the manifest declaration API, route
// registration, and every granted capability primitive. Nothing in this
// set reaches the real os/net/syscall packages directly — only through
// the validated primitives in internal/capability.
func hostBindings(b *YaegiBackend) interp.Exports {
	declare := func(fsRead, fsWrite, env, hosts []string) error {
		decl := manifest.Declaration{Env: env, Hosts: hosts}
		decl.FS.Read = fsRead
		decl.FS.Write = fsWrite
		return b.recordManifest(decl)
	}

	route := func(method, pattern, handlerRef string) {
		b.recordRoute(method, pattern, handlerRef)
	}

	return interp.Exports{
		"hull/hull": {
			"Manifest":   reflect.ValueOf(declare),
			"Route":      reflect.ValueOf(route),
			"KlRequest":  reflect.ValueOf((*KlRequest)(nil)),
			"KlResponse": reflect.ValueOf((*KlResponse)(nil)),
			"FS":         reflect.ValueOf(func() *capabilityFSHandle { return &capabilityFSHandle{b: b} }),
			"DB":         reflect.ValueOf(func() *capabilityDBHandle { return &capabilityDBHandle{b: b} }),
			"Env":        reflect.ValueOf(func() *capabilityEnvHandle { return &capabilityEnvHandle{b: b} }),
			"HTTP":       reflect.ValueOf(func() *capabilityHTTPHandle { return &capabilityHTTPHandle{b: b} }),
			"Crypto":     reflect.ValueOf(func() *capabilityCryptoHandle { return &capabilityCryptoHandle{b: b} }),
			"Clock":      reflect.ValueOf(func() *capabilityClockHandle { return &capabilityClockHandle{b: b} }),
		},
	}
}

// capability*Handle types are thin forwarding wrappers so scripted source
// calls e.g. hull.FS().Read(path) rather than reaching into the host's
// capability.Set directly; each method still goes through the same
// manifest-validated primitive the JS backend uses.

type capabilityFSHandle struct{ b *YaegiBackend }

func (h *capabilityFSHandle) Read(path string) ([]byte, error) {
	data, err := h.b.cfg.Capabilities.FS.Read(path, h.b.cfg.Capabilities.BaseDir)
	if err != nil {
		return nil, err
	}
	if err := h.b.accountAlloc(len(data)); err != nil {
		return nil, err
	}
	return data, nil
}

func (h *capabilityFSHandle) Write(path string, data []byte) error {
	// Accounted before the write: data is about to be retained by the
	// script's own caller (the write path round-trips the same bytes
	// back through the manifest-validated primitive), same as a read.
	if err := h.b.accountAlloc(len(data)); err != nil {
		return err
	}
	return h.b.cfg.Capabilities.FS.Write(path, h.b.cfg.Capabilities.BaseDir, data)
}

type capabilityDBHandle struct{ b *YaegiBackend }

func (h *capabilityDBHandle) Query(sqlText string, params []any) (any, error) {
	rows, err := h.b.cfg.Capabilities.DB.Query(sqlText, params)
	if err != nil {
		return nil, err
	}
	// Row shape is opaque (map[string]any per row), so its handed-back
	// size is estimated via its own wire encoding rather than walked
	// field by field.
	if encoded, err := json.Marshal(rows); err == nil {
		if err := h.b.accountAlloc(len(encoded)); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (h *capabilityDBHandle) Exec(sqlText string, params []any) (int64, error) {
	return h.b.cfg.Capabilities.DB.Exec(sqlText, params)
}

type capabilityEnvHandle struct{ b *YaegiBackend }

func (h *capabilityEnvHandle) Get(name string) (string, bool) {
	return h.b.cfg.Capabilities.Env.Get(name)
}

type capabilityHTTPHandle struct{ b *YaegiBackend }

func (h *capabilityHTTPHandle) Request(method, url string, headers map[string][]string, body []byte) (any, error) {
	if err := h.b.accountAlloc(len(body)); err != nil {
		return nil, err
	}
	resp, err := h.b.cfg.Capabilities.HTTP.Request(method, url, headers, body)
	if err != nil {
		return nil, err
	}
	if err := h.b.accountAlloc(len(resp.Body)); err != nil {
		return nil, err
	}
	return resp, nil
}

type capabilityCryptoHandle struct{ b *YaegiBackend }

func (h *capabilityCryptoHandle) SHA256(data []byte) [32]byte {
	return h.b.cfg.Capabilities.Crypto.SHA256(data)
}

type capabilityClockHandle struct{ b *YaegiBackend }

func (h *capabilityClockHandle) Now() any { return h.b.cfg.Capabilities.Clock.Now() }
