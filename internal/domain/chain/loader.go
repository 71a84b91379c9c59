package chain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a single Chain from a YAML file.
func LoadFromFile(path string) (*Chain, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		return nil, fmt.Errorf("read chain file %s: %w", path, err)
	}

	var c Chain
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse chain file %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate chain file %s: %w", path, err)
	}

	return &c, nil
}

// LoadFromDirectory reads all .yaml/.yml files from a directory and
// returns a slice of Chains. Missing directories return an empty slice
// (not an error), matching the config loading pattern.
func LoadFromDirectory(dir string) ([]Chain, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chain directory %s: %w", dir, err)
	}

	var chains []Chain
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		c, err := LoadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		chains = append(chains, *c)
	}

	return chains, nil
}
