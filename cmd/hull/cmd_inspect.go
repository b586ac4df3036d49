package main

import (
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"hull/internal/signature"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	keyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3"))
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [binary]",
	Short: "print a built app's signature bundle and embedded file inventory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	binPath := filepath.Join(workspace, "app")
	if len(args) == 1 {
		binPath = args[0]
	}

	bundle, binBytes, err := loadBundleAndBinary(binPath)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	fmt.Printf("%s %s\n", keyStyle.Render("binary:"), binPath)
	fmt.Printf("%s %s\n", keyStyle.Render("binary_hash:"), bundle.BinaryHash)
	fmt.Printf("%s %s\n", keyStyle.Render("trampoline_hash:"), bundle.TrampolineHash)
	fmt.Printf("%s %s (flags=%v)\n", keyStyle.Render("build:"), bundle.Build.CCVersion, bundle.Build.Flags)
	fmt.Printf("%s %s\n", keyStyle.Render("platform_version:"), bundle.Platform.Version)
	for arch, hash := range bundle.Platform.Hashes {
		fmt.Printf("  %s -> %s\n", arch, hash)
	}
	if bundle.Manifest == nil {
		fmt.Printf("%s (absent)\n", keyStyle.Render("manifest:"))
	} else {
		fmt.Printf("%s %v\n", keyStyle.Render("manifest:"), bundle.Manifest)
	}

	fmt.Printf("%s\n", keyStyle.Render("embedded files:"))
	srcDir := filepath.Dir(binPath)
	fileContents := make(map[string][]byte, len(bundle.Files))
	allRead := true
	for _, f := range bundle.Files {
		data, err := os.ReadFile(filepath.Join(srcDir, f.Path))
		if err != nil {
			fmt.Printf("  %s  %s (unreadable: %v)\n", failStyle.Render("?"), f.Path, err)
			allRead = false
			continue
		}
		fileContents[f.Path] = data
		match := signature.SHA256Hex(data) == f.SHA256
		mark := okStyle.Render("ok")
		if !match {
			mark = failStyle.Render("mismatch")
			allRead = false
		}
		fmt.Printf("  %s  %s\n", mark, f.Path)
	}

	if !allRead {
		fmt.Println(failStyle.Render("FAIL: one or more embedded files missing or hash-mismatched"))
		os.Exit(1)
	}

	currentArch := goruntime.GOOS + "/" + goruntime.GOARCH
	currentPlatformHash := signature.SHA256Hex(binBytes)
	// inspect reports the chain's internal consistency, not trust: it
	// never pins to a developer or platform key, since its purpose is to
	// show what a bundle claims, verify's purpose is to decide whether to
	// trust it.
	if err := signature.VerifyChain(bundle, currentArch, currentPlatformHash, fileContents, nil, nil); err != nil {
		fmt.Println(failStyle.Render("FAIL: " + err.Error()))
		os.Exit(1)
	}
	fmt.Println(okStyle.Render("PASS: signature chain verified"))
	return nil
}
