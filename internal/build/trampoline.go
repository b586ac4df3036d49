package build

import (
	"fmt"

	"hull/internal/signature"
)

// trampolineTemplate is the fixed entry-point C source (§4.8 step 4).
// %s is substituted with the backend's init symbol name; trampolineHash
// is computed over this template BEFORE substitution, so it identifies
// the template itself rather than any particular build's parameters.
const trampolineTemplate = `/* generated by hull build — do not edit */
extern int %s(int argc, char **argv);

int main(int argc, char **argv) {
    return %s(argc, argv);
}
`

// GenerateTrampoline renders the fixed entry-point template with
// initSymbol substituted in, and returns the rendered source alongside
// trampolineHash — the SHA-256 of the template in its pre-substitution
// form, recorded verbatim in the signed bundle.
func GenerateTrampoline(initSymbol string) (source string, trampolineHash string) {
	rendered := fmt.Sprintf(trampolineTemplate, initSymbol, initSymbol)
	hash := signature.SHA256Hex([]byte(trampolineTemplate))
	return rendered, hash
}

// defaultInitSymbol is the entry symbol used when the caller doesn't
// need to override it (every backend currently shares one ABI).
const defaultInitSymbol = "hull_runtime_main"

func defaultTrampolineSource() (string, string) {
	return GenerateTrampoline(defaultInitSymbol)
}
