package main

import (
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hull/internal/codec"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen <prefix>",
	Short: "generate an ed25519 keypair for signing (developer or platform)",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeygen,
}

func runKeygen(cmd *cobra.Command, args []string) error {
	prefix := args[0]

	pub, priv, err := codec.GenerateKey()
	if err != nil {
		return fmt.Errorf("keygen: generating key: %w", err)
	}

	privPath := prefix + ".key"
	pubPath := prefix + ".pub"

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "ED25519 PRIVATE KEY", Bytes: priv})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("keygen: writing %s: %w", privPath, err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "ED25519 PUBLIC KEY", Bytes: pub})
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return fmt.Errorf("keygen: writing %s: %w", pubPath, err)
	}

	fmt.Printf("wrote %s (private, 0600) and %s\n", privPath, pubPath)
	return nil
}
