package build

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Asset is one collected source or static file, keyed by its logical
// name (the slash-separated path relative to the source directory).
type Asset struct {
	LogicalName string
	Data        []byte
}

// CollectAssets walks srcDir and returns every regular file as an Asset,
// ordered lexicographically by LogicalName. That order becomes part of
// the signed bundle (§4.8 step 2), so callers must never re-sort or
// re-walk after this point — the order produced here is final.
func CollectAssets(srcDir string) ([]Asset, error) {
	var assets []Asset

	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("build: relativizing %s: %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("build: reading asset %s: %w", path, err)
		}
		assets = append(assets, Asset{LogicalName: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build: collecting assets under %s: %w", srcDir, err)
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].LogicalName < assets[j].LogicalName })
	return assets, nil
}
