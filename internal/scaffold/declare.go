package scaffold

import (
	"embed"
	"io/fs"
	"path"

	"github.com/conneroisu/pri/internal/ensure"
)

//go:embed declare/*.d.ts
var declarations embed.FS

// declarations returns the type declaration files copied into declare/.
func (g *Generator) declarations() []File {
	entries, err := fs.ReadDir(declarations, "declare")
	if err != nil {
		return nil
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		raw, err := declarations.ReadFile(path.Join("declare", entry.Name()))
		if err != nil {
			continue
		}
		files = append(files, File{path.Join(DeclareDir, entry.Name()), ensure.Static(string(raw))})
	}
	return files
}
