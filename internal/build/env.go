// Package build implements the deterministic build pipeline (§4.8):
// platform archive extraction, asset collection, C registry/trampoline
// generation, an allowlisted compile+link step, a concurrent hash pass,
// and the final canonical bundle sign.
package build

import (
	"hull/internal/config"
)

// CompileEnv returns the environment for the allowlisted compiler spawn,
// optionally cross-compiling for targetOS/targetArch (empty strings mean
// "build for the host"). This is the single source of truth for the
// compiler's environment — every call site in this package goes through
// it instead of assembling os.Environ() itself.
func CompileEnv(cfg config.BuildConfig, targetOS, targetArch string) []string {
	env := config.CompileEnv(cfg)
	if targetOS != "" {
		env = append(env, "HULL_TARGET_OS="+targetOS)
	}
	if targetArch != "" {
		env = append(env, "HULL_TARGET_ARCH="+targetArch)
	}
	return env
}
