package chains

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// LoadBuiltinChains returns the chains bundled with the binary.
func LoadBuiltinChains() ([]*Chain, error) {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("read builtin chains: %w", err)
	}

	loaded := make([]*Chain, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := "builtin/" + entry.Name()
		data, err := builtinFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read builtin chain %s: %w", entry.Name(), err)
		}
		c, err := parseChain(data)
		if err != nil {
			return nil, fmt.Errorf("parse builtin chain %s: %w", entry.Name(), err)
		}
		c.Source = "builtin"
		loaded = append(loaded, c)
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Name < loaded[j].Name
	})

	return loaded, nil
}

// BuiltinChain returns the named builtin chain.
func BuiltinChain(name string) (*Chain, error) {
	loaded, err := LoadBuiltinChains()
	if err != nil {
		return nil, err
	}
	if c := findByName(loaded, name); c != nil {
		return c, nil
	}
	return nil, ErrChainNotFound
}
