package runtime

import (
	"fmt"

	"github.com/dop251/goja"

	"hull/internal/manifest"
)

// installHostObject binds a single global "hull" object exposing the
// manifest declaration API, route registration, and every granted
// capability primitive to JS source running under Backend B. As with
// Backend A, every call here terminates in internal/capability — there is
// no path from script to a raw Go stdlib package.
func installHostObject(vm *goja.Runtime, b *GojaBackend) error {
	hull := vm.NewObject()

	type fsDecl struct {
		Read  []string `json:"read"`
		Write []string `json:"write"`
	}
	type manifestArg struct {
		FS    fsDecl   `json:"fs"`
		Env   []string `json:"env"`
		Hosts []string `json:"hosts"`
	}

	if err := hull.Set("manifest", func(arg manifestArg) error {
		decl := manifest.Declaration{Env: arg.Env, Hosts: arg.Hosts}
		decl.FS.Read = arg.FS.Read
		decl.FS.Write = arg.FS.Write
		return b.recordManifest(decl)
	}); err != nil {
		return err
	}

	if err := hull.Set("route", func(method, pattern, handlerRef string) {
		b.recordRoute(method, pattern, handlerRef)
	}); err != nil {
		return err
	}

	fs := vm.NewObject()
	fs.Set("read", func(path string) ([]byte, error) {
		return b.cfg.Capabilities.FS.Read(path, b.cfg.Capabilities.BaseDir)
	})
	fs.Set("write", func(path string, data []byte) error {
		return b.cfg.Capabilities.FS.Write(path, b.cfg.Capabilities.BaseDir, data)
	})
	fs.Set("exists", func(path string) bool {
		return b.cfg.Capabilities.FS.Exists(path, b.cfg.Capabilities.BaseDir)
	})
	hull.Set("fs", fs)

	db := vm.NewObject()
	db.Set("query", func(sqlText string, params []any) (any, error) {
		return b.cfg.Capabilities.DB.Query(sqlText, params)
	})
	db.Set("exec", func(sqlText string, params []any) (int64, error) {
		return b.cfg.Capabilities.DB.Exec(sqlText, params)
	})
	hull.Set("db", db)

	env := vm.NewObject()
	env.Set("get", func(name string) goja.Value {
		val, ok := b.cfg.Capabilities.Env.Get(name)
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(val)
	})
	hull.Set("env", env)

	httpObj := vm.NewObject()
	httpObj.Set("request", func(method, url string, headers map[string][]string, body []byte) (any, error) {
		return b.cfg.Capabilities.HTTP.Request(method, url, headers, body)
	})
	hull.Set("http", httpObj)

	cryptoObj := vm.NewObject()
	cryptoObj.Set("sha256", func(data []byte) string {
		sum := b.cfg.Capabilities.Crypto.SHA256(data)
		return fmt.Sprintf("%x", sum)
	})
	hull.Set("crypto", cryptoObj)

	clockObj := vm.NewObject()
	clockObj.Set("now", func() any { return b.cfg.Capabilities.Clock.Now() })
	hull.Set("clock", clockObj)

	return vm.Set("hull", hull)
}
