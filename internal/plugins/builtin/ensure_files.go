package builtin

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/pri/internal/config"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/scaffold"
)

// defaultWhiteFiles are accepted at the root of every project.
var defaultWhiteFiles = []string{
	"node_modules",
	".git",
	".temp",
	".vscode",
	".idea",
	".DS_Store",
	"coverage",
	".nyc_output",
	"declaration",
	"declare",
	"assets",
	"packages",
	"tests",
	"docs",
	"mocks",
	"dist",
	"*.md",
	"LICENSE*",
	"package-lock.json",
	"yarn.lock",
	"npm-shrinkwrap.json",
	"*.log",
	config.FileName,
}

// projectSourceWhiteFiles are accepted directly under src for projects.
var projectSourceWhiteFiles = []string{
	"pages",
	"layouts",
	"components",
	"utils",
	"stores",
	"styles",
	"404.tsx",
	"markdown.tsx",
}

func registerEnsureProjectFiles(_ context.Context, api *plugins.API, opts Options) error {
	registerWhiteFiles(api)

	api.Events.Once(events.BeforeEnsureFiles, func(ctx context.Context, _ ...interface{}) {
		queueProjectFiles(ctx, api, opts)
	})
	return nil
}

func queueProjectFiles(ctx context.Context, api *plugins.API, opts Options) {
	fs := api.Project.Fs()
	root := api.Project.Root()

	gen := scaffold.NewGenerator(fs, root)
	files := gen.ProjectFiles(scaffold.Options{
		Type:    api.Project.Type(),
		Config:  api.Project.Config(),
		Version: opts.Version,
		Exists: func(rel string) bool {
			ok, _ := afero.Exists(fs, filepath.Join(root, filepath.FromSlash(rel)))
			return ok
		},
	})

	for _, f := range files {
		api.Files.Add(f.Path, f.Transform)
	}
	api.Logger.Debug(ctx, "Project files queued", "type", api.Project.Type(), "files", len(files))
}

func registerWhiteFiles(api *plugins.API) {
	api.WhiteFiles.AddPattern(defaultWhiteFiles...)

	dist := strings.Trim(filepath.ToSlash(api.Project.Config().DistDir), "/")
	if dist != "" && !strings.HasPrefix(dist, "..") {
		api.WhiteFiles.AddPattern(strings.SplitN(dist, "/", 2)[0])
	}

	// Anything pri itself ensures is allowed.
	api.WhiteFiles.Add(func(rel string) bool {
		rel = filepath.ToSlash(rel)
		for _, queued := range api.Files.Paths() {
			if queued == rel || strings.HasPrefix(queued, rel+"/") {
				return true
			}
		}
		return false
	})

	api.WhiteFiles.Add(func(rel string) bool {
		rel = filepath.ToSlash(rel)
		src := sourceRoot(api)

		switch api.Project.Type() {
		case project.TypeProject:
			if rel == src {
				return true
			}
			if path.Dir(rel) != src {
				return false
			}
			for _, name := range projectSourceWhiteFiles {
				if path.Base(rel) == name {
					return true
				}
			}
			return false
		case project.TypeComponent, project.TypePlugin, project.TypeCLI:
			return rel == src || strings.HasPrefix(rel, src+"/")
		}
		return false
	})
}
