package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"hull/internal/capability"
	"hull/internal/config"
)

// defaultCompiler is the compiler CompileAndLink always invokes;
// cfg.CompileFlags only adds arguments after it and cannot select another
// compiler. It must be a member of the tool capability's fixed allowlist.
const defaultCompiler = "cc"

// ExtractPlatform writes the embedded platform archive to a fresh temp
// directory and returns its path (§4.8 step 1). The directory is named
// with a random UUID rather than the source directory's name, so two
// concurrent builds of the same app never collide.
func ExtractPlatform(platformArchive []byte) (string, error) {
	dir := filepath.Join(os.TempDir(), "hull-build-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("build: creating platform extract dir: %w", err)
	}
	archivePath := filepath.Join(dir, "platform.a")
	if err := os.WriteFile(archivePath, platformArchive, 0o644); err != nil {
		return "", fmt.Errorf("build: writing platform archive: %w", err)
	}
	return archivePath, nil
}

// CompileAndLink invokes the allowlisted compiler against registrySrc and
// trampolineSrc, linking against platformArchive, and writes the result
// to outPath (§4.8 step 5). The exact argv is recorded in flags for the
// bundle's BuildInfo.
func CompileAndLink(ctx context.Context, tool *capability.Tool, cfg config.BuildConfig, registrySrc, trampolineSrc, platformArchive, outPath, workDir string) (argv []string, err error) {
	registryPath := filepath.Join(workDir, "registry.c")
	trampolinePath := filepath.Join(workDir, "trampoline.c")
	if err := os.WriteFile(registryPath, []byte(registrySrc), 0o644); err != nil {
		return nil, fmt.Errorf("build: writing registry source: %w", err)
	}
	if err := os.WriteFile(trampolinePath, []byte(trampolineSrc), 0o644); err != nil {
		return nil, fmt.Errorf("build: writing trampoline source: %w", err)
	}

	compiler := defaultCompiler
	argv = append([]string{compiler, registryPath, trampolinePath, platformArchive, "-o", outPath}, cfg.CompileFlags...)

	env := CompileEnv(cfg, "", "")
	result, err := tool.Spawn(ctx, argv, env, workDir)
	if err != nil {
		return argv, fmt.Errorf("build: invoking compiler: %w", err)
	}
	if result.ExitCode != 0 {
		return argv, fmt.Errorf("build: compiler exited %d: %s", result.ExitCode, result.Stderr)
	}
	return argv, nil
}
