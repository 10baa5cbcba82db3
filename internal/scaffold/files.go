package scaffold

import (
	"context"
	"path"
	"strings"

	"github.com/conneroisu/pri/internal/config"
	"github.com/conneroisu/pri/internal/ensure"
	"github.com/conneroisu/pri/internal/project"
)

// File is one ensured project file.
type File struct {
	Path      string
	Transform ensure.Transform
}

// Options selects the ensured files.
type Options struct {
	Type    project.Type
	Config  config.Config
	Version string
	// Exists reports whether a project-relative path is present.
	Exists func(rel string) bool
}

// Root-anchored entries kept in .gitignore and .npmignore.
var (
	gitIgnores = []string{"node_modules", ".temp", ".vscode", "coverage", ".nyc_output", "declaration", "declare"}
	npmIgnores = []string{"node_modules", ".temp", ".vscode", "tests", "docs", "coverage", ".nyc_output"}
)

// Dependencies shipped with pri itself. Projects drop their own copies;
// other project types have them pinned to pri's versions.
var Dependencies = map[string]string{
	"react":            "^16.4.0",
	"react-dom":        "^16.4.0",
	"react-router-dom": "^4.3.1",
	"history":          "^4.7.2",
	"typescript":       "^3.0.1",
	"tslint":           "^5.11.0",
	"prettier":         "^1.14.2",
	"jest":             "^23.5.0",
	"ts-jest":          "^23.1.4",
}

// PrettierConfig is written to .prettierrc.
var PrettierConfig = map[string]interface{}{
	"printWidth":    120,
	"proseWrap":     "never",
	"semi":          true,
	"singleQuote":   true,
	"trailingComma": "all",
}

// ProjectFiles returns the files ensured for every project, followed by the
// files of opts.Type. Several entries may target the same path; their
// transforms fold in order.
func (g *Generator) ProjectFiles(opts Options) []File {
	if opts.Exists == nil {
		opts.Exists = func(string) bool { return false }
	}
	cfg := opts.Config

	files := []File{
		{".gitignore", rootLines(gitIgnores, cfg.DistDir)},
		{".npmignore", npmignore(cfg)},
		{".npmrc", npmrc(cfg)},
		{"tsconfig.json", staticJSON(tsconfig(opts.Type, cfg))},
		{"tsconfig.jest.json", staticJSON(map[string]interface{}{
			"extends":         "./tsconfig",
			"compilerOptions": map[string]interface{}{"module": "commonjs"},
		})},
		{".vscode/settings.json", ensure.MergeJSON(map[string]interface{}{
			"editor.formatOnSave":  true,
			"tslint.autoFixOnSave": true,
			"typescript.tsdk":      "node_modules/typescript/lib",
		})},
		{".prettierrc", staticJSON(PrettierConfig)},
		{"tslint.json", staticJSON(tslint())},
		{"package.json", packageJSON(opts.Type, opts.Version)},
	}

	files = append(files, g.declarations()...)

	switch opts.Type {
	case project.TypeProject:
		if !opts.Exists(path.Join(PagesDir, "index.tsx")) && !opts.Exists(path.Join(PagesDir, "index.md")) {
			files = append(files, File{path.Join(PagesDir, "index.tsx"), g.stub(TemplateHomePage, TemplateContext{})})
		}
		files = append(files,
			File{path.Join(TestsDir, "index.ts"), g.stub(TemplateTest, TemplateContext{})},
			File{"package.json", pinPri("devDependencies", "dependencies", opts.Version)},
		)

	case project.TypeComponent:
		types := ComponentEntry
		if cfg.HideSourceCodeForNpm {
			types = "declaration/index.d.ts"
		}
		files = append(files,
			File{"package.json", pinPri("dependencies", "devDependencies", opts.Version)},
			File{"package.json", ensure.MergeJSON(libraryPackage(cfg, types))},
			File{ComponentEntry, g.stub(TemplateComponent, TemplateContext{})},
			File{path.Join(DocsDir, "basic.tsx"), g.stub(TemplateDocs, TemplateContext{EntryImport: "../src"})},
			File{path.Join(TestsDir, "index.ts"), g.stub(TemplateTest, TemplateContext{})},
		)

	case project.TypePlugin:
		files = append(files,
			File{"package.json", pinPri("dependencies", "devDependencies", opts.Version)},
			File{"package.json", ensure.MergeJSON(libraryPackage(cfg, PluginEntry))},
			File{PluginEntry, g.stub(TemplatePlugin, TemplateContext{})},
		)
		if !opts.Exists(path.Join(TestsDir, "index.ts")) {
			files = append(files, File{path.Join(TestsDir, "index.ts"), g.stub(TemplateTest, TemplateContext{})})
		}
	}

	return files
}

// stub renders a template into the file only when it is empty or missing.
func (g *Generator) stub(name string, ctx TemplateContext) ensure.Transform {
	return func(_ context.Context, prev string) (string, error) {
		if strings.TrimSpace(prev) != "" {
			return prev, nil
		}
		return g.Render(name, ctx)
	}
}

func staticJSON(v interface{}) ensure.Transform {
	return func(context.Context, string) (string, error) {
		return ensure.EncodeJSON(v)
	}
}

func rootLines(names []string, extra ...string) ensure.Transform {
	lines := make([]string, 0, len(names)+len(extra))
	for _, name := range append(append([]string(nil), names...), extra...) {
		if name == "" {
			continue
		}
		lines = append(lines, "/"+strings.Trim(name, "/"))
	}
	return nonEmptyLines(ensure.UnionLines(lines...))
}

// nonEmptyLines drops blank lines before the union, so hand edits that left
// gaps do not accumulate.
func nonEmptyLines(next ensure.Transform) ensure.Transform {
	return func(ctx context.Context, prev string) (string, error) {
		var kept []string
		for _, line := range strings.Split(prev, "\n") {
			if strings.TrimSpace(line) != "" {
				kept = append(kept, line)
			}
		}
		return next(ctx, strings.Join(kept, "\n"))
	}
}

func npmignore(cfg config.Config) ensure.Transform {
	names := append([]string(nil), npmIgnores...)
	if cfg.HideSourceCodeForNpm {
		names = append(names, "src")
	}
	return rootLines(names)
}

func npmrc(cfg config.Config) ensure.Transform {
	if cfg.PackageLock {
		return ensure.Static("package-lock=true\n")
	}
	return ensure.Static("package-lock=false\n")
}

func tsconfig(typ project.Type, cfg config.Config) map[string]interface{} {
	paths := map[string]interface{}{
		PriPackageName + "/*": []string{PriPackageName, ".temp/types/*"},
	}
	if typ == project.TypeProject {
		paths["@/*"] = []string{"src/*"}
	}

	return map[string]interface{}{
		"compilerOptions": map[string]interface{}{
			"module":                 "esnext",
			"moduleResolution":       "node",
			"strict":                 true,
			"strictNullChecks":       false,
			"jsx":                    "react",
			"target":                 "esnext",
			"experimentalDecorators": true,
			"skipLibCheck":           true,
			"outDir":                 cfg.DistDir,
			"rootDir":                "./" + strings.Trim(cfg.SourceRoot, "./"),
			"baseUrl":                ".",
			"lib":                    []string{"dom", "es5", "es6", "scripthost"},
			"paths":                  paths,
		},
		"include": []string{".temp/**/*", path.Join(cfg.SourceRoot, "**/*")},
		"exclude": []string{"node_modules", cfg.DistDir},
	}
}

func tslint() map[string]interface{} {
	return map[string]interface{}{
		"extends":         []string{"tslint:latest", "tslint-config-prettier"},
		"defaultSeverity": "error",
		"rules": map[string]interface{}{
			"object-literal-sort-keys":         false,
			"max-classes-per-file":             []interface{}{true, 5},
			"trailing-comma":                   []interface{}{false},
			"no-string-literal":                true,
			"arrow-parens":                     false,
			"no-var-requires":                  true,
			"prefer-conditional-expression":    false,
			"no-implicit-dependencies":         false,
			"no-object-literal-type-assertion": false,
			"no-submodule-imports":             false,
			"no-empty":                         true,
			"interface-name":                   false,
		},
	}
}

func libraryPackage(cfg config.Config, types string) map[string]interface{} {
	return map[string]interface{}{
		"main":    path.Join(cfg.DistDir, "index.js"),
		"types":   types,
		"scripts": map[string]interface{}{"prepublishOnly": "npm run build"},
		"dependencies": map[string]interface{}{
			"@babel/runtime": "^7.0.0",
		},
	}
}
