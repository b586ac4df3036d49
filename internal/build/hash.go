package build

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"hull/internal/signature"
)

// HashAssets computes the SHA-256 of every asset concurrently (§4.8 step
// 6), returning one signature.FileHash per asset in the same order they
// were given — the goroutines race, the output slice does not.
func HashAssets(assets []Asset) ([]signature.FileHash, error) {
	hashes := make([]signature.FileHash, len(assets))

	var g errgroup.Group
	for i, a := range assets {
		i, a := i, a
		g.Go(func() error {
			hashes[i] = signature.FileHash{Path: a.LogicalName, SHA256: signature.SHA256Hex(a.Data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// HashBinary computes the SHA-256 of the linked output binary at path.
func HashBinary(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("build: hashing binary %s: %w", path, err)
	}
	return signature.SHA256Hex(data), nil
}
