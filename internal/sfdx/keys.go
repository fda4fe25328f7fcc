package sfdx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LegacyKeysFile holds installation keys written by older releases.
const LegacyKeysFile = "dxmate_config/dependencyKeys.json"

type legacyKey struct {
	PackageName string `json:"packageName"`
	PackageKey  string `json:"packageKey"`
}

// LegacyKeys reads the installation keys of the workspace by package name.
// A missing file yields no keys and no error.
func LegacyKeys(workspace string) (map[string]string, error) {
	entries, err := readLegacyKeys(workspace)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]string, len(entries))
	for _, e := range entries {
		keys[e.PackageName] = e.PackageKey
	}
	return keys, nil
}

// SaveLegacyKey stores key for pkg, replacing a previous one.
func SaveLegacyKey(workspace, pkg, key string) error {
	entries, err := readLegacyKeys(workspace)
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if entries[i].PackageName == pkg {
			entries[i].PackageKey = key
			found = true
		}
	}
	if !found {
		entries = append(entries, legacyKey{PackageName: pkg, PackageKey: key})
	}

	path := filepath.Join(workspace, LegacyKeysFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func readLegacyKeys(workspace string) ([]legacyKey, error) {
	path := filepath.Join(workspace, LegacyKeysFile)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []legacyKey
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return entries, nil
}
