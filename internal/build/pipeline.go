package build

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hull/internal/capability"
	"hull/internal/config"
	"hull/internal/logging"
	"hull/internal/manifest"
	"hull/internal/runtime"
	"hull/internal/signature"
)

// Result is the outcome of a successful Run: the signed binary's path and
// the bundle that was written alongside it as OutPath + ".sig" (the file
// is named after the binary, not package.sig).
type Result struct {
	BinaryPath string
	Bundle     signature.Bundle
}

// Options configures a single build pipeline run (§4.8).
type Options struct {
	SourceDir       string
	OutPath         string
	PlatformArchive []byte // embedded platform bytes for this arch
	PlatformAtt     signature.PlatformAttestation
	DeveloperKey    ed25519.PrivateKey
	BuildConfig     config.BuildConfig
	RuntimeConfig   runtime.Config
	// NewRuntime constructs the backend used only to load the app far
	// enough to read its manifest declaration; it is never used to serve
	// requests. The backend's Init strips the sandboxed globals exactly as
	// it does for serving; no backend has a tool-mode setup that keeps them.
	NewRuntime func() (runtime.Runtime, error)
}

// Run executes the full build pipeline and returns the signed result
// (§4.8). Every step produces a named artifact in the order the spec
// lists them; nothing here reorders or parallelizes across steps, since
// each depends on the previous one's output — only the hash pass (step 6,
// per-file) runs its own work concurrently.
func Run(ctx context.Context, opts Options) (*Result, error) {
	platformArchivePath, err := ExtractPlatform(opts.PlatformArchive)
	if err != nil {
		return nil, err
	}
	workDir := filepath.Dir(platformArchivePath)

	assets, err := CollectAssets(opts.SourceDir)
	if err != nil {
		return nil, err
	}
	logging.BuildInfo("build: collected %d assets from %s", len(assets), opts.SourceDir)

	decl, present, err := extractManifestDeclaration(ctx, opts)
	if err != nil {
		return nil, err
	}
	var manifestPayload any
	if present {
		m, err := manifest.New(decl)
		if err != nil {
			return nil, fmt.Errorf("build: validating declared manifest: %w", err)
		}
		manifestPayload = manifestToAny(m)
	}

	registrySrc := GenerateRegistry(assets)
	trampolineSrc, trampolineHash := defaultTrampolineSource()

	tool := capability.NewTool()
	argv, err := CompileAndLink(ctx, tool, opts.BuildConfig, registrySrc, trampolineSrc, platformArchivePath, opts.OutPath, workDir)
	if err != nil {
		return nil, err
	}

	fileHashes, err := HashAssets(assets)
	if err != nil {
		return nil, err
	}
	binaryHash, err := HashBinary(opts.OutPath)
	if err != nil {
		return nil, err
	}

	bundle := signature.Bundle{
		BinaryHash: binaryHash,
		Platform:   opts.PlatformAtt,
		Files:      fileHashes,
		Manifest:   manifestPayload,
		Build: signature.BuildInfo{
			CCVersion: defaultCompiler,
			Flags:     argv[1:],
			Timestamp: "", // determinism requirement (§4.8): no timestamps in compiled output
		},
		TrampolineHash: trampolineHash,
	}
	signed, err := signature.SignBundle(bundle, opts.DeveloperKey)
	if err != nil {
		return nil, err
	}

	sigPath := opts.OutPath + ".sig"
	canon, err := signature.MarshalCanonical(signed)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(sigPath, canon, 0o644); err != nil {
		return nil, fmt.Errorf("build: writing %s: %w", sigPath, err)
	}

	logging.BuildInfo("build: wrote %s and %s", opts.OutPath, sigPath)
	return &Result{BinaryPath: opts.OutPath, Bundle: signed}, nil
}

func extractManifestDeclaration(ctx context.Context, opts Options) (manifest.Declaration, bool, error) {
	rt, err := opts.NewRuntime()
	if err != nil {
		return manifest.Declaration{}, false, fmt.Errorf("build: constructing runtime for manifest extraction: %w", err)
	}
	defer rt.Destroy()

	if err := rt.Init(opts.RuntimeConfig); err != nil {
		return manifest.Declaration{}, false, fmt.Errorf("build: initializing runtime for manifest extraction: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	source, err := os.ReadFile(filepath.Join(opts.SourceDir, "main.kl"))
	if err != nil {
		return manifest.Declaration{}, false, fmt.Errorf("build: reading entry unit: %w", err)
	}
	if err := rt.LoadApp(loadCtx, source); err != nil {
		return manifest.Declaration{}, false, fmt.Errorf("build: loading app to extract manifest: %w", err)
	}

	src := runtime.ManifestSource{RT: rt}
	defer src.Release()
	return src.ReadDeclaration()
}

func manifestToAny(m *manifest.Manifest) any {
	if m == nil {
		return nil
	}
	return map[string]any{
		"fs_read":  stringsToAny(m.FSRead),
		"fs_write": stringsToAny(m.FSWrite),
		"env":      stringsToAny(m.Env),
		"hosts":    stringsToAny(m.Hosts),
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
