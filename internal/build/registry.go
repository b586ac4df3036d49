package build

import (
	"fmt"
	"strings"
)

// GenerateRegistry emits a C source file declaring a static array of
// {name, data_ptr, data_len} entries, one per asset, in the order given
// (§4.8 step 3). Callers must pass assets in the already-lexicographic
// order CollectAssets produces — this function does not re-sort, since
// the registry's iteration order is itself part of the signed bundle.
func GenerateRegistry(assets []Asset) string {
	var b strings.Builder
	b.WriteString("/* generated by hull build — do not edit */\n")
	b.WriteString("#include <stddef.h>\n\n")

	for i, a := range assets {
		b.WriteString(fmt.Sprintf("static const unsigned char hull_asset_%d[] = {", i))
		for j, by := range a.Data {
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString(fmt.Sprintf("0x%02x", by))
		}
		b.WriteString("};\n")
	}

	b.WriteString("\ntypedef struct { const char *name; const unsigned char *data; unsigned long len; } hull_asset_entry;\n\n")
	b.WriteString(fmt.Sprintf("static const hull_asset_entry hull_asset_registry[%d] = {\n", len(assets)))
	for i, a := range assets {
		b.WriteString(fmt.Sprintf("  { %q, hull_asset_%d, %d },\n", a.LogicalName, i, len(a.Data)))
	}
	b.WriteString("};\n\n")
	b.WriteString(fmt.Sprintf("static const unsigned long hull_asset_count = %d;\n", len(assets)))
	return b.String()
}
