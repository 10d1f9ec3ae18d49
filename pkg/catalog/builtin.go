package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// BuiltinPrefix marks a catalog reference as a built-in table name
// rather than a file path.
const BuiltinPrefix = "builtin:"

// BuiltinNames returns the names of the built-in catalogs.
func BuiltinNames() []string {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Builtin parses the built-in catalog called name.
func Builtin(name string) (*Catalog, error) {
	c, err := LoadFS(builtinFS, "builtin/"+name+".yaml")
	if err != nil {
		return nil, fmt.Errorf("builtin catalog %q: %w", name, err)
	}
	return c, nil
}

// Open loads a catalog reference: "builtin:<name>" or a file path.
func Open(ref string) (*Catalog, error) {
	if name, ok := strings.CutPrefix(ref, BuiltinPrefix); ok {
		return Builtin(name)
	}
	return Load(ref)
}

// OpenAll loads every reference and merges them into one catalog.
func OpenAll(refs ...string) (*Catalog, error) {
	all := New("")
	for _, ref := range refs {
		c, err := Open(ref)
		if err != nil {
			return nil, err
		}
		if err := all.Merge(c); err != nil {
			return nil, err
		}
	}
	return all, nil
}
