package main

import (
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/spf13/cobra"

	"hull/internal/config"
	"hull/internal/signature"
)

var (
	signPlatformVersion string
	signPlatformArch    string
)

var signPlatformCmd = &cobra.Command{
	Use:   "sign-platform <platform_archive>",
	Short: "sign a platform archive, producing the attestation build consumes",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignPlatform,
}

func init() {
	signPlatformCmd.Flags().StringVar(&signPlatformVersion, "version", "dev", "platform version label recorded in the attestation")
	signPlatformCmd.Flags().StringVar(&signPlatformArch, "arch", goruntime.GOOS+"/"+goruntime.GOARCH, "architecture triple this archive is built for")
}

// runSignPlatform produces the outer trust anchor a developer's build
// links against and a running app later verifies itself against
// (§4.5's platform half of the signature chain). Running it again for a
// second arch against the same attestation file merges hash entries
// rather than overwriting them, so one attestation can cover several
// platform archives.
func runSignPlatform(cmd *cobra.Command, args []string) error {
	archivePath := args[0]
	archive, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("sign-platform: reading %s: %w", archivePath, err)
	}

	cfg, err := config.Load(filepath.Join(workspace, configPath))
	if err != nil {
		return fmt.Errorf("sign-platform: loading config: %w", err)
	}
	platformKey, err := loadPrivateKey(cfg.PlatformKeyPath)
	if err != nil {
		return fmt.Errorf("sign-platform: loading platform key: %w", err)
	}

	attPath := archivePath + ".att"
	hashes := map[string]string{}
	if existing, err := os.ReadFile(attPath); err == nil {
		if prior, err := signature.UnmarshalPlatformCanonical(existing); err == nil {
			for k, v := range prior.Hashes {
				hashes[k] = v
			}
		}
	}
	hashes[signPlatformArch] = signature.SHA256Hex(archive)

	att, err := signature.SignPlatform(signPlatformVersion, hashes, platformKey)
	if err != nil {
		return fmt.Errorf("sign-platform: signing: %w", err)
	}

	canon, err := signature.MarshalPlatformCanonical(att)
	if err != nil {
		return fmt.Errorf("sign-platform: marshaling attestation: %w", err)
	}
	if err := os.WriteFile(attPath, canon, 0o644); err != nil {
		return fmt.Errorf("sign-platform: writing %s: %w", attPath, err)
	}

	fmt.Printf("wrote %s (arch=%s, %d total arch entries)\n", attPath, signPlatformArch, len(hashes))
	return nil
}
