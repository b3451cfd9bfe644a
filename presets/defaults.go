package presets

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

const defaultDir = "defaults"

//go:embed defaults/*.prst
var defaultFS embed.FS

// DefaultNames returns the names of the built-in presets.
func DefaultNames() []string {
	entries, err := fs.ReadDir(defaultFS, defaultDir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(names)
	return names
}
