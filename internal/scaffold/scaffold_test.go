package scaffold

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pri/internal/config"
	"github.com/conneroisu/pri/internal/ensure"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/project"
)

func defaultConfig() config.Config {
	return config.Config{DistDir: "dist", SourceRoot: "src"}
}

func flush(t *testing.T, fs afero.Fs, files []File) {
	t.Helper()

	q := ensure.NewQueue(fs, "/app", nil)
	for _, f := range files {
		q.Add(f.Path, f.Transform)
	}
	_, err := q.Flush(context.Background())
	require.NoError(t, err)
}

func readJSON(t *testing.T, fs afero.Fs, path string) map[string]interface{} {
	t.Helper()

	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestProjectFilesForProject(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/app/package.json", []byte(`{
  "name": "site",
  "dependencies": {"react": "15.0.0", "lodash": "4.0.0", "pri-plugin-docs": "1.0.0"},
  "devDependencies": {"pri": "1.5.0"}
}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/app/.gitignore", []byte("/node_modules\n\n*.log\n"), 0o644))

	g := NewGenerator(fs, "/app")
	flush(t, fs, g.ProjectFiles(Options{Type: project.TypeProject, Config: defaultConfig(), Version: "2.0.0"}))

	pkg := readJSON(t, fs, "/app/package.json")
	deps := pkg["dependencies"].(map[string]interface{})
	assert.NotContains(t, deps, "react")
	assert.Equal(t, "4.0.0", deps["lodash"])
	assert.Equal(t, "1.5.0", deps["pri"])
	assert.NotContains(t, deps, "pri-plugin-docs")

	dev := pkg["devDependencies"].(map[string]interface{})
	assert.Equal(t, "1.0.0", dev["pri-plugin-docs"])
	assert.NotContains(t, dev, "pri")

	assert.Equal(t, "pri dev", pkg["scripts"].(map[string]interface{})["start"])
	assert.Equal(t, "project", pkg["pri"].(map[string]interface{})["type"])
	assert.Equal(t, "site", pkg["name"])

	gitignore, err := afero.ReadFile(fs, "/app/.gitignore")
	require.NoError(t, err)
	assert.Equal(t, "/node_modules\n*.log\n/.temp\n/.vscode\n/coverage\n/.nyc_output\n/declaration\n/declare\n/dist\n", string(gitignore))

	tsconfig := readJSON(t, fs, "/app/tsconfig.json")
	paths := tsconfig["compilerOptions"].(map[string]interface{})["paths"].(map[string]interface{})
	assert.Contains(t, paths, "@/*")
	assert.Equal(t, []interface{}{".temp/**/*", "src/**/*"}, tsconfig["include"])

	home, err := afero.ReadFile(fs, "/app/src/pages/index.tsx")
	require.NoError(t, err)
	assert.Contains(t, string(home), `import { isDevelopment } from "pri/client"`)
	assert.Contains(t, string(home), `style={{ display: "flex"`)

	for _, path := range []string{"/app/tests/index.ts", "/app/declare/static.d.ts", "/app/.npmrc", "/app/.prettierrc", "/app/tslint.json", "/app/tsconfig.jest.json", "/app/.vscode/settings.json"} {
		ok, _ := afero.Exists(fs, path)
		assert.True(t, ok, path)
	}
}

func TestProjectFilesKeepMarkdownHome(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := NewGenerator(fs, "/app")

	files := g.ProjectFiles(Options{
		Type:   project.TypeProject,
		Config: defaultConfig(),
		Exists: func(rel string) bool { return rel == "src/pages/index.md" },
	})

	for _, f := range files {
		assert.NotEqual(t, "src/pages/index.tsx", f.Path)
	}
}

func TestProjectFilesForComponent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/app/package.json", []byte(`{
  "dependencies": {"react": "15.0.0", "pri": "1.0.0"},
  "devDependencies": {"pri-plugin-x": "1.0.0"}
}`), 0o644))

	cfg := defaultConfig()
	cfg.HideSourceCodeForNpm = true

	g := NewGenerator(fs, "/app")
	flush(t, fs, g.ProjectFiles(Options{Type: project.TypeComponent, Config: cfg, Version: "2.0.0"}))

	pkg := readJSON(t, fs, "/app/package.json")
	deps := pkg["dependencies"].(map[string]interface{})
	assert.Equal(t, Dependencies["react"], deps["react"])
	assert.Equal(t, "^7.0.0", deps["@babel/runtime"])
	assert.NotContains(t, deps, "pri")
	assert.Equal(t, "1.0.0", pkg["devDependencies"].(map[string]interface{})["pri"])
	assert.Equal(t, "dist/index.js", pkg["main"])
	assert.Equal(t, "declaration/index.d.ts", pkg["types"])

	npmignore, err := afero.ReadFile(fs, "/app/.npmignore")
	require.NoError(t, err)
	assert.Contains(t, string(npmignore), "/src\n")

	docs, err := afero.ReadFile(fs, "/app/docs/basic.tsx")
	require.NoError(t, err)
	assert.Contains(t, string(docs), `import Component from "../src"`)
}

func TestProjectFilesForPlugin(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/app/package.json", []byte(`{
  "devDependencies": {"@ali/pri-plugin-base": "1.0.0"}
}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/app/src/index.ts", []byte("export default 1\n"), 0o644))

	g := NewGenerator(fs, "/app")
	flush(t, fs, g.ProjectFiles(Options{Type: project.TypePlugin, Config: defaultConfig(), Version: "2.0.0"}))

	pkg := readJSON(t, fs, "/app/package.json")
	assert.Equal(t, "1.0.0", pkg["dependencies"].(map[string]interface{})["@ali/pri-plugin-base"])
	assert.Equal(t, "2.0.0", pkg["devDependencies"].(map[string]interface{})["pri"])

	entry, err := afero.ReadFile(fs, "/app/src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, "export default 1\n", string(entry))
}

func TestNpmrc(t *testing.T) {
	cfg := defaultConfig()
	out, err := npmrc(cfg)(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "package-lock=false\n", out)

	cfg.PackageLock = true
	out, err = npmrc(cfg)(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "package-lock=true\n", out)
}

func TestAddPage(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := NewGenerator(fs, "/app")

	rel, err := g.AddPage(context.Background(), "/user/edit-profile/")
	require.NoError(t, err)
	assert.Equal(t, "src/pages/user/edit-profile/index.tsx", rel)

	raw, err := afero.ReadFile(fs, "/app/src/pages/user/edit-profile/index.tsx")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "export default class UserEditProfilePage")
	assert.Contains(t, string(raw), "New page for user/edit-profile")

	_, err = g.AddPage(context.Background(), "user/edit-profile")
	require.Error(t, err)
	var pe *prierrors.PriError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, prierrors.ErrCodeFileExists, pe.Code)

	_, err = g.AddPage(context.Background(), "../escape")
	assert.Error(t, err)
	_, err = g.AddPage(context.Background(), "")
	assert.Error(t, err)
}

func TestCreateStubs(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := NewGenerator(fs, "/app")
	ctx := context.Background()

	tests := []struct {
		name   string
		create func(context.Context) (string, error)
		path   string
		want   string
	}{
		{"layout", g.CreateLayout, "src/layouts/index.tsx", "{this.props.children}"},
		{"404", g.Create404, "src/404.tsx", "Page not found"},
		{"config", g.CreateConfig, "pri.json", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := tt.create(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.path, rel)

			raw, err := afero.ReadFile(fs, "/app/"+tt.path)
			require.NoError(t, err)
			assert.Contains(t, string(raw), tt.want)

			_, err = tt.create(ctx)
			assert.Error(t, err)
		})
	}
}

func TestPageComponentName(t *testing.T) {
	tests := map[string]string{
		"about":             "AboutPage",
		"user/edit-profile": "UserEditProfilePage",
		"2024/report":       "P2024ReportPage",
		"docs_intro":        "DocsIntroPage",
	}

	for in, want := range tests {
		assert.Equal(t, want, PageComponentName(in), in)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := NewGenerator(afero.NewMemMapFs(), "/app").Render("missing", TemplateContext{})
	assert.Error(t, err)
}
