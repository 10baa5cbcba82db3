// Package scaffold writes the files pri keeps in shape for each project type
// and generates page, layout, 404 and config stubs on request.
package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/pri/internal/config"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/validation"
)

// Project-relative locations of generated stubs.
const (
	PagesDir       = "src/pages"
	LayoutFile     = "src/layouts/index.tsx"
	NotFoundFile   = "src/404.tsx"
	TestsDir       = "tests"
	DocsDir        = "docs"
	ComponentEntry = "src/index.tsx"
	PluginEntry    = "src/index.ts"
	DeclareDir     = "declare"
)

// Generator renders stubs into a project.
type Generator struct {
	fs        afero.Fs
	root      string
	templates map[string]Template
}

// NewGenerator creates a generator for the project at root.
func NewGenerator(fs afero.Fs, root string) *Generator {
	return &Generator{
		fs:        fs,
		root:      root,
		templates: BuiltinTemplates(),
	}
}

// Render renders the named template.
func (g *Generator) Render(name string, ctx TemplateContext) (string, error) {
	tmpl, ok := g.templates[name]
	if !ok {
		return "", fmt.Errorf("template '%s' not found", name)
	}
	if ctx.PriPackage == "" {
		ctx.PriPackage = PriPackageName
	}

	t, err := template.New(name).Parse(tmpl.Content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// AddPage creates src/pages/<pagePath>/index.tsx. It fails when the page
// already exists. The returned path is project relative.
func (g *Generator) AddPage(_ context.Context, pagePath string) (string, error) {
	pagePath = strings.Trim(filepath.ToSlash(pagePath), "/")
	if pagePath == "" {
		return "", prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, "page path is required")
	}
	if err := validation.ValidateRelativePath(pagePath); err != nil {
		return "", err
	}

	rel := path.Join(PagesDir, pagePath, "index.tsx")
	content, err := g.Render(TemplatePage, TemplateContext{
		ComponentName: PageComponentName(pagePath),
		Path:          pagePath,
	})
	if err != nil {
		return "", err
	}

	return rel, g.create(rel, content, pagePath+" already exist!")
}

// CreateLayout creates the layout stub.
func (g *Generator) CreateLayout(context.Context) (string, error) {
	content, err := g.Render(TemplateLayout, TemplateContext{})
	if err != nil {
		return "", err
	}
	return LayoutFile, g.create(LayoutFile, content, "layout already exist!")
}

// Create404 creates the not-found page stub.
func (g *Generator) Create404(context.Context) (string, error) {
	content, err := g.Render(TemplateNotFound, TemplateContext{})
	if err != nil {
		return "", err
	}
	return NotFoundFile, g.create(NotFoundFile, content, "404 page already exist!")
}

// CreateConfig creates an empty pri.json.
func (g *Generator) CreateConfig(context.Context) (string, error) {
	return config.FileName, g.create(config.FileName, "{}\n", "config already exist!")
}

func (g *Generator) create(rel, content, existsMsg string) error {
	full := filepath.Join(g.root, filepath.FromSlash(rel))

	exists, err := afero.Exists(g.fs, full)
	if err != nil {
		return prierrors.FileOperationError("stat", full, err)
	}
	if exists {
		return prierrors.NewValidationError(prierrors.ErrCodeFileExists, existsMsg).WithFile(rel)
	}

	if err := g.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return prierrors.FileOperationError("mkdir", filepath.Dir(full), err)
	}
	if err := afero.WriteFile(g.fs, full, []byte(content), 0o644); err != nil {
		return prierrors.FileOperationError("write", full, err)
	}

	return nil
}

// PageComponentName derives a component class name from a page path:
// "user/edit-profile" becomes "UserEditProfilePage".
func PageComponentName(pagePath string) string {
	caser := cases.Title(language.English)

	var b strings.Builder
	for _, word := range strings.FieldsFunc(pagePath, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		b.WriteString(caser.String(word))
	}

	name := b.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "P" + name
	}
	return name + "Page"
}
