package chains

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadChain reads a single chain from disk.
func LoadChain(path string) (*Chain, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("chain path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain %s: %w", path, err)
	}

	c, err := parseChain(data)
	if err != nil {
		return nil, fmt.Errorf("parse chain %s: %w", path, err)
	}
	c.Source = path
	return c, nil
}

// LoadChainsFromDir loads all chains from a directory.
func LoadChainsFromDir(dir string) ([]*Chain, error) {
	if strings.TrimSpace(dir) == "" {
		return []*Chain{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Chain{}, nil
		}
		return nil, fmt.Errorf("read chains dir %s: %w", dir, err)
	}

	loaded := make([]*Chain, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		c, err := LoadChain(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, c)
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Name < loaded[j].Name
	})

	return loaded, nil
}

func parseChain(data []byte) (*Chain, error) {
	var c Chain
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}

	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	for i := range c.Steps {
		c.Steps[i].Name = strings.TrimSpace(c.Steps[i].Name)
		c.Steps[i].Prompt = strings.TrimSpace(c.Steps[i].Prompt)
	}
	for i := range c.Variables {
		c.Variables[i].Name = strings.TrimSpace(c.Variables[i].Name)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}
