package config

import (
	"os"
	"strings"
)

// BuildConfig configures the environment the build pipeline's allowlisted
// compiler spawn (internal/capability.Tool) runs under — generalized from
// the teacher's go-build environment assembly to Hull's native C
// trampoline/registry compile step (§4.8).
type BuildConfig struct {
	// EnvVars are additional environment variables for the compiler
	// invocation (CC, CFLAGS, LDFLAGS).
	EnvVars map[string]string `yaml:"env_vars" json:"env_vars,omitempty"`

	// CompileFlags are extra flags recorded verbatim alongside the
	// compiler invocation (§4.8's determinism requirement: "compile
	// flags are recorded verbatim").
	CompileFlags []string `yaml:"compile_flags" json:"compile_flags,omitempty"`

	// AllowedEnvPassthrough lists host environment variable names that
	// may be forwarded into the compiler's environment unchanged (e.g.
	// PATH, so the compiler binary itself can be found).
	AllowedEnvPassthrough []string `yaml:"allowed_env_passthrough" json:"allowed_env_passthrough,omitempty"`
}

// DefaultBuildConfig returns the minimal environment a native compiler
// invocation needs to locate itself and write temp files.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		EnvVars:               map[string]string{},
		CompileFlags:          []string{},
		AllowedEnvPassthrough: []string{"PATH", "HOME", "TMPDIR", "TEMP", "TMP"},
	}
}

// CompileEnv assembles the environment slice for a single allowlisted
// compiler spawn: passthrough vars from the host process, then cfg's
// EnvVars layered on top (later wins on collision), mirroring the
// teacher's layered base-then-override GetBuildEnv shape.
func CompileEnv(cfg BuildConfig) []string {
	env := make([]string, 0, len(cfg.AllowedEnvPassthrough)+len(cfg.EnvVars))
	for _, key := range cfg.AllowedEnvPassthrough {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	for key, val := range cfg.EnvVars {
		env = setEnvKey(env, key, val)
	}
	return env
}

func setEnvKey(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}
