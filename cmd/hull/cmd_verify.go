package main

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/spf13/cobra"

	"hull/internal/signature"
)

var (
	verifyDeveloperKeyPath string
	verifyPlatformKeyPath  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify [binary]",
	Short: "verify a built binary's signature chain against its embedded files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDeveloperKeyPath, "developer-key", "", "pin app signature verification to this developer public key (PEM)")
	verifyCmd.Flags().StringVar(&verifyPlatformKeyPath, "platform-key", "", "pin platform attestation verification to this public key (PEM), overriding the built-in default")
}

func runVerify(cmd *cobra.Command, args []string) error {
	binPath := filepath.Join(workspace, "app")
	if len(args) == 1 {
		binPath = args[0]
	}

	pinnedPlatformKey, pinnedDeveloperKey, err := loadPinnedKeys(verifyPlatformKeyPath, verifyDeveloperKeyPath)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	bundle, binBytes, err := loadBundleAndBinary(binPath)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	srcDir := filepath.Dir(binPath)
	fileContents := make(map[string][]byte, len(bundle.Files))
	for _, f := range bundle.Files {
		data, err := os.ReadFile(filepath.Join(srcDir, f.Path))
		if err != nil {
			fmt.Printf("FAIL %s: reading embedded file: %v\n", binPath, err)
			os.Exit(1)
		}
		fileContents[f.Path] = data
	}

	currentArch := goruntime.GOOS + "/" + goruntime.GOARCH
	currentPlatformHash := signature.SHA256Hex(binBytes)

	if err := signature.VerifyPlatform(bundle.Platform, currentArch, currentPlatformHash, pinnedPlatformKey); err != nil {
		fmt.Printf("FAIL %s: %v\n", binPath, err)
		os.Exit(1)
	}
	fmt.Printf("platform signature valid (%s)\n", binPath)

	if err := signature.VerifyBundle(bundle, fileContents, pinnedDeveloperKey); err != nil {
		fmt.Printf("FAIL %s: %v\n", binPath, err)
		os.Exit(1)
	}
	fmt.Printf("app signature valid (%s)\n", binPath)

	fmt.Printf("OK %s: platform=%s binary_hash=%s files=%d\n", binPath, bundle.Platform.Version, bundle.BinaryHash, len(bundle.Files))
	return nil
}

// loadPinnedKeys resolves the platform and developer trust anchors for a
// verify run. The platform key defaults to signature.DefaultPlatformPublicKey
// (§4.5's hardcoded trust anchor) unless platformKeyPath overrides it; the
// developer key has no default — an empty developerKeyPath leaves app
// signature verification unpinned, checking only that the bundle is
// internally self-consistent.
func loadPinnedKeys(platformKeyPath, developerKeyPath string) (platformKey, developerKey ed25519.PublicKey, err error) {
	platformKey = signature.DefaultPlatformPublicKey
	if platformKeyPath != "" {
		platformKey, err = loadPublicKey(platformKeyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading platform key: %w", err)
		}
	}
	if developerKeyPath != "" {
		developerKey, err = loadPublicKey(developerKeyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading developer key: %w", err)
		}
	}
	return platformKey, developerKey, nil
}

// loadBundleAndBinary reads binPath and the signature bundle beside it,
// which is named binPath + ".sig" (for example app.sig), not package.sig.
func loadBundleAndBinary(binPath string) (signature.Bundle, []byte, error) {
	binBytes, err := os.ReadFile(binPath)
	if err != nil {
		return signature.Bundle{}, nil, fmt.Errorf("reading binary: %w", err)
	}
	sigData, err := os.ReadFile(binPath + ".sig")
	if err != nil {
		return signature.Bundle{}, nil, fmt.Errorf("reading signature bundle: %w", err)
	}
	bundle, err := signature.UnmarshalCanonical(sigData)
	if err != nil {
		return signature.Bundle{}, nil, err
	}
	return bundle, binBytes, nil
}
