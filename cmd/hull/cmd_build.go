package main

import (
	"crypto/ed25519"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hull/internal/build"
	"hull/internal/config"
	"hull/internal/runtime"
	"hull/internal/signature"
)

var (
	buildOutPath      string
	buildPlatformPath string
)

var buildCmd = &cobra.Command{
	Use:   "build [src_dir]",
	Short: "compile a scripted app into a signed, self-contained binary",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutPath, "output", "o", "", "output binary path (default: <src_dir>/app)")
	buildCmd.Flags().StringVar(&buildPlatformPath, "platform", "", "platform archive; its attestation is read from <path>.att (default: platform.a beside cfg.platform_key_path)")
}

// runBuild wires internal/build.Run (§4.8): extract platform archive,
// collect assets, extract the declared manifest, generate registry and
// trampoline sources, compile and link, hash everything, sign.
func runBuild(cmd *cobra.Command, args []string) error {
	srcDir := workspace
	if len(args) == 1 {
		srcDir = args[0]
	}

	cfg, err := config.Load(filepath.Join(srcDir, configPath))
	if err != nil {
		return fmt.Errorf("build: loading config: %w", err)
	}

	outPath := buildOutPath
	if outPath == "" {
		outPath = filepath.Join(srcDir, "app")
	}

	platformPath := buildPlatformPath
	if platformPath == "" {
		platformPath = filepath.Join(filepath.Dir(cfg.PlatformKeyPath), "platform.a")
	}
	platformArchive, err := os.ReadFile(platformPath)
	if err != nil {
		return fmt.Errorf("build: reading platform archive %s: %w", platformPath, err)
	}
	platformAtt, err := loadPlatformAttestation(platformPath + ".att")
	if err != nil {
		return fmt.Errorf("build: loading platform attestation: %w", err)
	}

	devKey, err := loadPrivateKey(cfg.DevKeyPath)
	if err != nil {
		return fmt.Errorf("build: loading developer key: %w", err)
	}

	backend := cfg.RuntimeBackend
	opts := build.Options{
		SourceDir:       srcDir,
		OutPath:         outPath,
		PlatformArchive: platformArchive,
		PlatformAtt:     platformAtt,
		DeveloperKey:    devKey,
		BuildConfig:     cfg.Build,
		RuntimeConfig: runtime.Config{
			MemoryCapBytes:    cfg.MemoryCapBytes,
			InstructionBudget: cfg.InstructionBudgetOrDefault(0),
		},
		NewRuntime: func() (runtime.Runtime, error) {
			return selectRuntime(backend)
		},
	}

	// No outer deadline here: manifest extraction already bounds itself
	// (build.extractManifestDeclaration) and the compiler spawn enforces
	// its own timeout (capability.Tool.Spawn).
	result, err := build.Run(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	fmt.Printf("built %s (binary_hash=%s)\n", result.BinaryPath, result.Bundle.BinaryHash)
	return nil
}

// loadPlatformAttestation reads the canonical attestation sign-platform
// wrote out.
func loadPlatformAttestation(path string) (signature.PlatformAttestation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return signature.PlatformAttestation{}, err
	}
	return signature.UnmarshalPlatformCanonical(data)
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || len(block.Bytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%s: not a valid ed25519 private key PEM", path)
	}
	return ed25519.PrivateKey(block.Bytes), nil
}

// loadPublicKey reads a PEM-encoded ed25519 public key as written by
// keygen's <prefix>.pub output — used by verify/serve's --developer-key
// and --platform-key flags to load a pinned trust anchor.
func loadPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || len(block.Bytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%s: not a valid ed25519 public key PEM", path)
	}
	return ed25519.PublicKey(block.Bytes), nil
}
