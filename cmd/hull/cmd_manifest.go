package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hull/internal/config"
	"hull/internal/manifest"
	"hull/internal/runtime"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest [src_dir]",
	Short: "extract and print the declared manifest, without applying a sandbox",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runManifest,
}

// runManifest loads an app only far enough to read its manifest
// declaration, the same tool-mode load build.Run uses, then prints the
// result — no sandbox is ever applied here, since tool mode never serves
// a request that would need one.
func runManifest(cmd *cobra.Command, args []string) error {
	srcDir := workspace
	if len(args) == 1 {
		srcDir = args[0]
	}

	cfg, err := config.Load(filepath.Join(srcDir, configPath))
	if err != nil {
		return fmt.Errorf("manifest: loading config: %w", err)
	}

	rt, err := selectRuntime(cfg.RuntimeBackend)
	if err != nil {
		return err
	}
	defer rt.Destroy()

	if err := rt.Init(runtime.Config{
		MemoryCapBytes:    cfg.MemoryCapBytes,
		InstructionBudget: cfg.InstructionBudgetOrDefault(0),
	}); err != nil {
		return fmt.Errorf("manifest: initializing runtime: %w", err)
	}

	source, err := os.ReadFile(filepath.Join(srcDir, "main.kl"))
	if err != nil {
		return fmt.Errorf("manifest: reading entry unit: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), startupTO)
	defer cancel()
	if err := rt.LoadApp(ctx, source); err != nil {
		return fmt.Errorf("manifest: loading app: %w", err)
	}

	src := runtime.ManifestSource{RT: rt}
	m, release, err := manifest.Extract(src)
	release()
	if err != nil {
		return fmt.Errorf("manifest: extracting: %w", err)
	}
	if m == nil {
		fmt.Println("no manifest declared (absent: default deny, no sandbox applied at serve time)")
		return nil
	}

	out, err := json.MarshalIndent(struct {
		FSRead  []string `json:"fs_read"`
		FSWrite []string `json:"fs_write"`
		Env     []string `json:"env"`
		Hosts   []string `json:"hosts"`
	}{m.FSRead, m.FSWrite, m.Env, m.Hosts}, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshaling: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
