package stdlib

import (
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
)

// registerBuiltins installs Hull's small set of embedded modules. Full
// application-facing convenience modules (JSON, CSV, email, i18n,
// templates, pagination, RBAC, rate limiting) are explicitly out of
// scope; what lives here demonstrates the resolver mechanism itself —
// the registry order, not a convenience-module library.
func registerBuiltins(r *Registry) {
	r.Register(assertModule())
}

// AssertionFailed is returned by the "assert" module's Go-side binding
// when a condition does not hold, mirroring the error the JS side
// throws.
type AssertionFailed struct{ Message string }

func (e *AssertionFailed) Error() string { return e.Message }

func assertTrue(cond bool, msg string) error {
	if !cond {
		if msg == "" {
			msg = "assertion failed"
		}
		return &AssertionFailed{Message: msg}
	}
	return nil
}

func assertEqual(got, want any) error {
	if !reflect.DeepEqual(got, want) {
		return &AssertionFailed{Message: fmt.Sprintf("assertEqual: got %v, want %v", got, want)}
	}
	return nil
}

func assertModule() *Module {
	return &Module{
		Name: "assert",
		YaegiExports: interp.Exports{
			"hull/stdlib/assert": {
				"True":  reflect.ValueOf(assertTrue),
				"Equal": reflect.ValueOf(assertEqual),
			},
		},
		JSSource: `
function True(cond, msg) {
	if (!cond) {
		throw new Error(msg || "assertion failed");
	}
}
function Equal(got, want) {
	if (JSON.stringify(got) !== JSON.stringify(want)) {
		throw new Error("assertEqual: got " + JSON.stringify(got) + ", want " + JSON.stringify(want));
	}
}
module.exports = { True: True, Equal: Equal };
`,
	}
}
