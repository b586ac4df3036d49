package stdlib

import (
	"fmt"

	"github.com/dop251/goja"
)

// InstallRequire defines a global `require(name)` in vm that resolves
// only against reg — the JS-side half of §4.6's "require resolver that
// consults the stdlib registry first". Each module's source is compiled
// and run at most once per VM; its CommonJS-shaped module.exports is
// cached and returned on every subsequent require of the same name.
func InstallRequire(vm *goja.Runtime, reg *Registry) error {
	cache := make(map[string]goja.Value)

	return vm.Set("require", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if cached, ok := cache[name]; ok {
			return cached
		}

		mod, ok := reg.Lookup(name)
		if !ok || mod.JSSource == "" {
			panic(vm.ToValue(fmt.Sprintf("stdlib: module %q not found", name)))
		}

		wrapper := "(function(module) {\n" + mod.JSSource + "\n})"
		fnVal, err := vm.RunString(wrapper)
		if err != nil {
			panic(vm.ToValue(fmt.Sprintf("stdlib: compiling module %q: %v", name, err)))
		}
		fn, ok := goja.AssertFunction(fnVal)
		if !ok {
			panic(vm.ToValue(fmt.Sprintf("stdlib: module %q did not compile to a function", name)))
		}

		moduleObj := vm.NewObject()
		if err := moduleObj.Set("exports", vm.NewObject()); err != nil {
			panic(vm.ToValue(fmt.Sprintf("stdlib: initializing module %q: %v", name, err)))
		}

		if _, err := fn(goja.Undefined(), moduleObj); err != nil {
			panic(err)
		}

		exports := moduleObj.Get("exports")
		cache[name] = exports
		return exports
	})
}
