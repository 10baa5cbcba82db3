// Package entry analyses the project's pages and generates the client entry
// file. Plugins shape the generated source by subscribing to the createEntry
// event and piping the sections of the entry they receive.
package entry

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/logging"
	"github.com/conneroisu/pri/internal/pipe"
	"github.com/conneroisu/pri/internal/project"
)

// Project-relative locations the analysis looks at.
const (
	PagesDir     = "src/pages"
	LayoutFile   = "src/layouts/index.tsx"
	NotFoundFile = "src/404.tsx"
	TempDir      = ".temp"
	EntryFile    = ".temp/entry.tsx"
)

var pageExtensions = map[string]bool{".tsx": true, ".ts": true, ".jsx": true, ".js": true, ".md": true}

// Page is one routable page.
type Page struct {
	Route     string `json:"route"`
	File      string `json:"file"`
	ChunkName string `json:"chunkName"`
	Markdown  bool   `json:"markdown"`
}

// Analysis describes the project as seen by the entry generator.
type Analysis struct {
	Pages       []Page                 `json:"pages"`
	HasLayout   bool                   `json:"hasLayout"`
	HasNotFound bool                   `json:"hasNotFound"`
	Files       []string               `json:"-"`
	Plugins     map[string]interface{} `json:"plugins,omitempty"`
}

// Analyser contributes plugin specific facts to the analysis.
type Analyser func(ctx context.Context, files []string) (interface{}, error)

type namedAnalyser struct {
	name string
	fn   Analyser
}

// Generator analyses the project and writes the entry file.
type Generator struct {
	project *project.Context
	events  *events.Bus
	pipes   *pipe.Registry
	logger  logging.Logger

	mu        sync.RWMutex
	analysers []namedAnalyser
}

// NewGenerator creates a generator. pipes is the process-wide registry
// handed to createEntry subscribers for named lookups.
func NewGenerator(p *project.Context, bus *events.Bus, pipes *pipe.Registry, logger logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Generator{
		project: p,
		events:  bus,
		pipes:   pipes,
		logger:  logger.WithComponent("entry"),
	}
}

// AddAnalyser registers fn; its result is stored under name in
// Analysis.Plugins.
func (g *Generator) AddAnalyser(name string, fn Analyser) {
	if fn == nil {
		return
	}

	g.mu.Lock()
	g.analysers = append(g.analysers, namedAnalyser{name: name, fn: fn})
	g.mu.Unlock()
}

// Analyse scans the project.
func (g *Generator) Analyse(ctx context.Context) (*Analysis, error) {
	files, err := g.projectFiles()
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Files:   files,
		Plugins: make(map[string]interface{}),
	}

	for _, rel := range files {
		switch {
		case rel == LayoutFile:
			analysis.HasLayout = true
		case rel == NotFoundFile:
			analysis.HasNotFound = true
		case strings.HasPrefix(rel, PagesDir+"/"):
			if page, ok := pageFor(rel); ok {
				analysis.Pages = append(analysis.Pages, page)
			}
		}
	}

	sort.SliceStable(analysis.Pages, func(i, j int) bool {
		return analysis.Pages[i].Route < analysis.Pages[j].Route
	})

	g.mu.RLock()
	analysers := append([]namedAnalyser(nil), g.analysers...)
	g.mu.RUnlock()

	for _, a := range analysers {
		result, err := a.fn(ctx, files)
		if err != nil {
			return nil, prierrors.Wrap(err, prierrors.ErrorTypePlugin, prierrors.ErrCodePluginLoad,
				fmt.Sprintf("analyser %s failed", a.name))
		}
		analysis.Plugins[a.name] = result
	}

	g.logger.Debug(ctx, "Project analysed", "pages", len(analysis.Pages), "files", len(files))

	return analysis, nil
}

// pageFor maps src/pages/<route>/index.tsx and src/pages/<route>.md to a
// route. Other source files under the pages directory are page internals, and
// segments starting with an underscore are private.
func pageFor(rel string) (Page, bool) {
	ext := path.Ext(rel)
	if !pageExtensions[ext] || strings.HasSuffix(rel, ".d.ts") {
		return Page{}, false
	}
	base := strings.TrimSuffix(path.Base(rel), ext)
	if strings.Contains("/"+rel, "/_") || (ext != ".md" && base != "index") {
		return Page{}, false
	}

	route := strings.TrimSuffix(strings.TrimPrefix(rel, PagesDir), ext)
	route = strings.TrimSuffix(route, "/index")
	if route == "" {
		route = "/"
	}

	chunk := strings.Trim(route, "/")
	if chunk == "" {
		chunk = "index"
	}

	return Page{
		Route:     route,
		File:      rel,
		ChunkName: strings.ReplaceAll(chunk, "/", "-"),
		Markdown:  ext == ".md",
	}, true
}

func (g *Generator) projectFiles() ([]string, error) {
	root := g.project.Root()
	fs := g.project.Fs()
	skip := map[string]bool{
		"node_modules": true,
		".git":         true,
		TempDir:        true,
	}
	skip[g.project.Config().DistDir] = true

	if ok, _ := afero.DirExists(fs, root); !ok {
		return nil, nil
	}

	var files []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && skip[rel] {
				return filepath.SkipDir
			}
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, prierrors.FileOperationError("walk", root, err)
	}

	return files, nil
}
