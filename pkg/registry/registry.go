// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultIndex string

// ErrNotPinned is returned for a package the index does not know.
var ErrNotPinned = errors.New("package not pinned")

// Entry pins one bootstrap package.
type Entry struct {
	Name    string `toml:"-"`
	Version string `toml:"version"`

	// Archive is a glob matched against file names in the search dirs.
	Archive string `toml:"archive"`

	URL string `toml:"url"`

	// SHA256 of the file at URL. Empty skips verification.
	SHA256 string `toml:"sha256"`
}

// Index maps package names to their pins.
type Index struct {
	Packages map[string]Entry `toml:"packages"`
}

// Default returns the index compiled into the binary.
func Default() (*Index, error) {
	return Parse(defaultIndex)
}

// Load reads an index file. An empty path means the built-in index.
func Load(path string) (*Index, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: reading index: %w", err)
	}
	idx, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("registry: failed to parse '%s': %w", path, err)
	}
	return idx, nil
}

// Parse decodes a TOML index.
func Parse(data string) (*Index, error) {
	var idx Index
	md, err := toml.Decode(data, &idx)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys: %v", undecoded)
	}
	for name, e := range idx.Packages {
		if e.Archive == "" {
			return nil, fmt.Errorf("package '%s' has no archive pattern", name)
		}
		e.Name = name
		idx.Packages[name] = e
	}
	return &idx, nil
}

// Lookup returns the pin for name.
func (idx *Index) Lookup(name string) (Entry, error) {
	e, ok := idx.Packages[name]
	if !ok {
		return Entry{}, fmt.Errorf("registry: %w: '%s' (pinned: %s)", ErrNotPinned, name, strings.Join(idx.Names(), ", "))
	}
	return e, nil
}

// Names lists pinned packages in order.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.Packages))
	for name := range idx.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
