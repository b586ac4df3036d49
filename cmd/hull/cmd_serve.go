package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	goruntime "runtime"
	"syscall"

	"github.com/spf13/cobra"

	"hull/internal/capability"
	"hull/internal/config"
	"hull/internal/logging"
	"hull/internal/manifest"
	"hull/internal/router"
	"hull/internal/runtime"
	"hull/internal/sandbox"
	"hull/internal/signature"
)

var verifySigDeveloperKeyPath string

// defaultBodyCapBytes bounds a single request body read through the Body
// capability primitive; the host config has no setting that overrides it.
const defaultBodyCapBytes = capability.DefaultBodyCap

var serveCmd = &cobra.Command{
	Use:   "serve [src_dir]",
	Short: "start the HTTP server for a scripted app (default command)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&verifySigDeveloperKeyPath, "verify-sig", "", "verify the running binary's signature bundle before serving, pinned to this developer public key (PEM)")
}

// runServe implements §2's startup sequence: open DB, init router, select
// runtime, load app, verify signature if requested, wire routes, extract
// manifest, apply sandbox, enter event loop. The sandbox boundary is the
// irreversible line — everything before it may touch unrestricted
// resources, everything after is confined.
func runServe(cmd *cobra.Command, args []string) error {
	srcDir := workspace
	if len(args) == 1 {
		srcDir = args[0]
	}

	cfg, err := config.Load(filepath.Join(srcDir, configPath))
	if err != nil {
		return fmt.Errorf("serve: loading config: %w", err)
	}

	dbPath := cfg.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(srcDir, dbPath)
	}
	db, err := capability.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("serve: opening database: %w", err)
	}
	defer db.Close()

	transport := router.NewHTTPTransport(cfg.Addr)
	bridge := router.NewBridge(transport)

	rt, err := selectRuntime(cfg.RuntimeBackend)
	if err != nil {
		return err
	}
	defer rt.Destroy()

	if err := rt.Init(runtime.Config{
		MemoryCapBytes:    cfg.MemoryCapBytes,
		InstructionBudget: cfg.InstructionBudgetOrDefault(0),
	}); err != nil {
		return fmt.Errorf("serve: initializing runtime: %w", err)
	}

	entrySource, err := os.ReadFile(filepath.Join(srcDir, "main.kl"))
	if err != nil {
		return fmt.Errorf("serve: reading entry unit: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), startupTO)
	if err := rt.LoadApp(ctx, entrySource); err != nil {
		cancel()
		return fmt.Errorf("serve: loading app: %w", err)
	}
	cancel()

	if verifySigDeveloperKeyPath != "" {
		if err := verifyRunningBinary(cfg, srcDir, verifySigDeveloperKeyPath); err != nil {
			return fmt.Errorf("serve: signature verification failed: %w", err)
		}
		logging.BootInfo("serve: signature chain verified")
	}

	if err := rt.WireRoutes(bridge); err != nil {
		return fmt.Errorf("serve: wiring routes: %w", err)
	}

	src := runtime.ManifestSource{RT: rt}
	m, release, err := manifest.Extract(src)
	if err != nil {
		release()
		return fmt.Errorf("serve: extracting manifest: %w", err)
	}

	selfPath, _ := os.Executable()
	promises := manifest.DerivePromises(m, dbPath, selfPath)
	tier, err := sandbox.Apply(promises)
	release()
	if err != nil {
		return fmt.Errorf("serve: applying sandbox: %w", err)
	}
	logging.SandboxInfo("serve: sandbox applied tier=%s", tier)

	var envAllowlist, hostAllowlist []string
	if m != nil {
		envAllowlist = m.Env
		hostAllowlist = m.Hosts
	}
	capSet := capability.NewSet(srcDir, dbPath, db, envAllowlist, hostAllowlist, defaultBodyCapBytes)
	rt.SetCapabilities(capSet)

	logging.BootInfo("serve: listening on %s backend=%s", cfg.Addr, cfg.RuntimeBackend)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := bridge.Run(ctx); err != nil {
		return fmt.Errorf("serve: event loop: %w", err)
	}
	return nil
}

func selectRuntime(backend string) (runtime.Runtime, error) {
	switch backend {
	case "yaegi":
		return runtime.NewYaegiBackend(), nil
	case "goja", "":
		return runtime.NewGojaBackend(), nil
	default:
		return nil, fmt.Errorf("serve: unknown runtime backend %q", backend)
	}
}

// verifyRunningBinary checks the running binary's own signature bundle,
// pinning the app signature to developerKeyPath (loaded as a PEM public
// key) and the platform attestation to signature.DefaultPlatformPublicKey
// — the hardcoded trust anchor, not whatever key the bundle itself
// carries (§4.5).
func verifyRunningBinary(cfg *config.Config, srcDir, developerKeyPath string) error {
	developerKey, err := loadPublicKey(developerKeyPath)
	if err != nil {
		return fmt.Errorf("loading developer key: %w", err)
	}

	selfPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating running binary: %w", err)
	}
	sigPath := selfPath + ".sig"
	data, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", sigPath, err)
	}
	bundle, err := signature.UnmarshalCanonical(data)
	if err != nil {
		return err
	}

	selfBytes, err := os.ReadFile(selfPath)
	if err != nil {
		return fmt.Errorf("reading running binary: %w", err)
	}
	currentArch := goruntime.GOOS + "/" + goruntime.GOARCH
	currentPlatformHash := signature.SHA256Hex(selfBytes)

	fileContents := make(map[string][]byte, len(bundle.Files))
	for _, f := range bundle.Files {
		data, err := os.ReadFile(filepath.Join(srcDir, f.Path))
		if err != nil {
			return fmt.Errorf("reading embedded file %s for verification: %w", f.Path, err)
		}
		fileContents[f.Path] = data
	}

	return signature.VerifyChain(bundle, currentArch, currentPlatformHash, fileContents, signature.DefaultPlatformPublicKey, developerKey)
}
