package stdlib

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	m := &Module{Name: "widget"}
	r.Register(m)

	got, ok := r.Lookup("widget")
	require.True(t, ok)
	assert.Same(t, m, got)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistryRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&Module{Name: "widget"})
	assert.Panics(t, func() {
		r.Register(&Module{Name: "widget"})
	})
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&Module{Name: "zeta"})
	r.Register(&Module{Name: "alpha"})
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}

func TestDefaultRegistryHasAssertModule(t *testing.T) {
	reg := Default()
	m, ok := reg.Lookup("assert")
	require.True(t, ok)
	assert.NotEmpty(t, m.JSSource)
	assert.Contains(t, m.YaegiExports, "hull/stdlib/assert")
}

func TestAssertTrueAndEqual(t *testing.T) {
	assert.NoError(t, assertTrue(true, "should hold"))
	err := assertTrue(false, "boom")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())

	assert.NoError(t, assertEqual(1, 1))
	err = assertEqual(1, 2)
	require.Error(t, err)

	var af *AssertionFailed
	assert.True(t, errorsAsAssertionFailed(err, &af))
}

func errorsAsAssertionFailed(err error, target **AssertionFailed) bool {
	af, ok := err.(*AssertionFailed)
	if !ok {
		return false
	}
	*target = af
	return true
}

func TestYaegiExportsMergesAllModules(t *testing.T) {
	r := NewRegistry()
	r.Register(&Module{
		Name: "one",
		YaegiExports: map[string]map[string]reflect.Value{
			"hull/stdlib/one": {"X": reflect.ValueOf(1)},
		},
	})
	r.Register(&Module{
		Name: "two",
		YaegiExports: map[string]map[string]reflect.Value{
			"hull/stdlib/two": {"Y": reflect.ValueOf(2)},
		},
	})
	exports := r.YaegiExports()
	assert.Contains(t, exports, "hull/stdlib/one")
	assert.Contains(t, exports, "hull/stdlib/two")
}
