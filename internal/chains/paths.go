package chains

import (
	"os"
	"path/filepath"
	"strings"
)

// ChainSearchPaths returns chain search directories in precedence order.
func ChainSearchPaths(projectDir string) []string {
	paths := make([]string, 0, 3)
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".mermaid-agent", "chains"))
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "mermaid-agent", "chains"))
	}

	paths = append(paths, filepath.Join(string(filepath.Separator), "usr", "share", "mermaid-agent", "chains"))
	return paths
}

// LoadChainsFromSearchPaths loads chains from search paths with first-hit precedence.
func LoadChainsFromSearchPaths(projectDir string) ([]*Chain, error) {
	return loadChainsFromPaths(ChainSearchPaths(projectDir))
}

func loadChainsFromPaths(paths []string) ([]*Chain, error) {
	seen := make(map[string]*Chain)
	order := make([]string, 0)

	for _, path := range paths {
		loaded, err := LoadChainsFromDir(path)
		if err != nil {
			return nil, err
		}
		for _, c := range loaded {
			if _, exists := seen[c.Name]; exists {
				continue
			}
			seen[c.Name] = c
			order = append(order, c.Name)
		}
	}

	builtins, err := LoadBuiltinChains()
	if err != nil {
		return nil, err
	}
	for _, c := range builtins {
		if _, exists := seen[c.Name]; exists {
			continue
		}
		seen[c.Name] = c
		order = append(order, c.Name)
	}

	resolved := make([]*Chain, 0, len(order))
	for _, name := range order {
		resolved = append(resolved, seen[name])
	}

	return resolved, nil
}

// FindChain loads a specific chain by name (case-insensitive).
func FindChain(projectDir, name string) (*Chain, error) {
	loaded, err := LoadChainsFromSearchPaths(projectDir)
	if err != nil {
		return nil, err
	}
	if c := findByName(loaded, name); c != nil {
		return c, nil
	}
	return nil, ErrChainNotFound
}

func findByName(items []*Chain, name string) *Chain {
	name = strings.TrimSpace(name)
	for _, c := range items {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}
