package entry

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/spf13/afero"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/pipe"
)

// Entry section pipes. Each generation starts with empty chains.
const (
	PipeAppHeader       = "appHeader"
	PipeAppBody         = "appBody"
	PipeEntryRender     = "entryRender"
	PipeEnvironmentBody = "environmentBody"
)

// Entry is handed to createEntry subscribers for one generation.
type Entry struct {
	// Pipes is the process-wide pipe registry, for named lookups such as
	// the service worker content.
	Pipes *pipe.Registry

	sections *pipe.Registry
}

func newEntry(global *pipe.Registry) *Entry {
	return &Entry{Pipes: global, sections: pipe.NewRegistry()}
}

// PipeAppHeader transforms the import block.
func (e *Entry) PipeAppHeader(fn pipe.Transformer[string]) {
	e.sections.Register(PipeAppHeader, fn)
}

// PipeAppBody transforms the code between the imports and the router.
func (e *Entry) PipeAppBody(fn pipe.Transformer[string]) {
	e.sections.Register(PipeAppBody, fn)
}

// PipeEntryRender transforms the final render call.
func (e *Entry) PipeEntryRender(fn pipe.Transformer[string]) {
	e.sections.Register(PipeEntryRender, fn)
}

// PipeEnvironmentBody transforms the runtime environment setup.
func (e *Entry) PipeEnvironmentBody(fn pipe.Transformer[string]) {
	e.sections.Register(PipeEnvironmentBody, fn)
}

var entryTemplate = template.Must(template.New("entry").Parse(`{{ .Header }}

{{ .Environment }}

{{ range .Pages }}const {{ .Component }} = React.lazy(() => import(/* webpackChunkName: "{{ .ChunkName }}" */ "{{ .Import }}"))
{{ end }}
{{ .Body }}

const App = () => (
  <Router history={history}>
    <React.Suspense fallback={null}>
      {{ if .HasLayout }}<Layout>{{ end }}
      <Switch>
        {{ range .Pages }}<Route exact path="{{ .Route }}" component={ {{- .Component -}} } />
        {{ end }}{{ if .HasNotFound }}<Route component={NotFound} />{{ end }}
      </Switch>
      {{ if .HasLayout }}</Layout>{{ end }}
    </React.Suspense>
  </Router>
)

{{ .Render }}
`))

type templatePage struct {
	Page
	Component string
	Import    string
}

type templateData struct {
	Header      string
	Environment string
	Body        string
	Render      string
	Pages       []templatePage
	HasLayout   bool
	HasNotFound bool
}

func defaultHeader(a *Analysis) string {
	header := `import * as React from "react"
import * as ReactDOM from "react-dom"
import { Route, Router, Switch } from "react-router-dom"
import { history } from "pri/client"`
	if a.HasLayout {
		header += "\nimport Layout from \"../src/layouts\""
	}
	if a.HasNotFound {
		header += "\nimport NotFound from \"../src/404\""
	}
	return header
}

const (
	defaultEnvironment = `const priStore = (window as any).pri = (window as any).pri || {}`
	defaultRender      = `ReactDOM.render(<App />, document.getElementById("root"))`
)

// Create emits createEntry with a fresh Entry, renders every section through
// its pipes and writes EntryFile. It returns the absolute entry path.
func (g *Generator) Create(ctx context.Context, analysis *Analysis) (string, error) {
	if analysis == nil {
		var err error
		if analysis, err = g.Analyse(ctx); err != nil {
			return "", err
		}
	}

	e := newEntry(g.pipes)
	g.events.Emit(ctx, events.CreateEntry, analysis, e)

	data := templateData{
		HasLayout:   analysis.HasLayout,
		HasNotFound: analysis.HasNotFound,
	}

	sections := []struct {
		name    string
		initial string
		out     *string
	}{
		{PipeAppHeader, defaultHeader(analysis), &data.Header},
		{PipeEnvironmentBody, defaultEnvironment, &data.Environment},
		{PipeAppBody, "", &data.Body},
		{PipeEntryRender, defaultRender, &data.Render},
	}
	for _, s := range sections {
		value, err := e.sections.Apply(ctx, s.name, s.initial)
		if err != nil {
			return "", prierrors.Wrap(err, prierrors.ErrorTypePlugin, prierrors.ErrCodePluginLoad,
				"entry pipe "+s.name+" failed")
		}
		*s.out = value
	}

	for i, page := range analysis.Pages {
		imp := "../" + page.File
		if !page.Markdown {
			imp = "../" + trimExt(page.File)
		}
		data.Pages = append(data.Pages, templatePage{
			Page:      page,
			Component: componentName(i),
			Import:    imp,
		})
	}

	var buf bytes.Buffer
	if err := entryTemplate.Execute(&buf, data); err != nil {
		return "", prierrors.NewInternalError(prierrors.ErrCodeInternalError, "render entry", err)
	}

	path := g.project.Path(filepath.FromSlash(EntryFile))
	fs := g.project.Fs()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", prierrors.FileOperationError("mkdir", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return "", prierrors.FileOperationError("write", path, err)
	}

	g.logger.Debug(ctx, "Entry created", "path", path, "pages", len(analysis.Pages))

	return path, nil
}

func componentName(i int) string {
	return "Page" + strconv.Itoa(i)
}

func trimExt(p string) string {
	return p[:len(p)-len(filepath.Ext(p))]
}
