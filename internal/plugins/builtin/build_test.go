package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pri/internal/bundler"
	"github.com/conneroisu/pri/internal/entry"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/project"
)

func suffix(s string) func(context.Context, string) (string, error) {
	return func(_ context.Context, prior string) (string, error) {
		return prior + s, nil
	}
}

func (f *fixture) bundlerConfig(t *testing.T) bundler.Config {
	t.Helper()
	var cfg bundler.Config
	f.readJSON(t, bundler.ConfigFile, &cfg)
	return cfg
}

func TestBuildProject(t *testing.T) {
	f := newFixture(t, project.TypeProject, map[string]string{
		"pri.json":                  `{"useServiceWorker": true}`,
		"src/pages/index.tsx":       "export default () => null",
		"src/pages/about/index.tsx": "export default () => null",
		"assets/logo.png":           "png",
		"dist/old.js":               "stale",
	})
	f.host.Pipes.Register(PipeServiceWorkerAfterProdBuild, suffix("\n// prod"))

	var (
		gotStats *bundler.Stats
		gotOpts  BuildOptions
	)
	f.host.Events.On(events.AfterProdBuild, func(_ context.Context, args ...interface{}) {
		gotStats = args[0].(*bundler.Stats)
		gotOpts = args[1].(BuildOptions)
	})

	require.NoError(t, f.run("build", "-p", "/cdn"))

	assert.False(t, f.exists("dist/old.js"))
	assert.Equal(t, "png", f.read(t, "dist/assets/logo.png"))

	sw := f.read(t, "dist/sw.js")
	assert.Contains(t, sw, "self.skipWaiting()")
	assert.Contains(t, sw, "// prod")

	main := f.read(t, entry.EntryFile)
	assert.Contains(t, main, "priStore.globalState = ")
	assert.Contains(t, main, "navigator.serviceWorker.register('/sw.js'")

	cfg := f.bundlerConfig(t)
	assert.Equal(t, bundler.ModeProduction, cfg.Mode)
	assert.Equal(t, "/cdn/", cfg.PublicPath)
	assert.Equal(t, "/app/.temp/entry.tsx", cfg.Entry["main"])
	require.Len(t, cfg.HTMLPages, 2)
	assert.Equal(t, "index.html", cfg.HTMLPages[0].Filename)
	assert.Equal(t, "about/index.html", cfg.HTMLPages[1].Filename)
	assert.Equal(t, "/app/"+bundler.TemplateFile, cfg.HTMLPages[1].Template)
	assert.Contains(t, f.read(t, bundler.TemplateFile), "<title>Pri</title>")

	require.NotNil(t, gotStats)
	assert.Equal(t, "abc", gotStats.Hash)
	assert.Equal(t, "/cdn", gotOpts.PublicPath)
	assert.False(t, gotOpts.Cloud)

	lint := f.sh.index("npx --no-install tslint")
	node := f.sh.index("node --version")
	bundle := f.sh.index("npx --no-install pri-bundler")
	require.NotEqual(t, -1, lint)
	assert.Less(t, lint, node)
	assert.Less(t, node, bundle)
}

func TestBuildProjectWithoutServiceWorker(t *testing.T) {
	f := newFixture(t, project.TypeProject, map[string]string{
		"src/pages/index.tsx": "export default () => null",
	})

	require.NoError(t, f.run("build", "--cloud"))

	assert.False(t, f.exists("dist/sw.js"))
	assert.NotContains(t, f.read(t, entry.EntryFile), "serviceWorker")
}

func TestBuildStopsOnLintErrors(t *testing.T) {
	f := newFixture(t, project.TypeProject, nil)
	f.sh.fail["npx --no-install tslint"] = errors.New("exit status 2")

	require.Error(t, f.run("build"))
	assert.False(t, f.sh.ran("npx --no-install pri-bundler"))
}

func TestBuildComponent(t *testing.T) {
	f := newFixture(t, project.TypeComponent, nil)

	var emitted bool
	f.host.Events.On(events.AfterProdBuild, func(context.Context, ...interface{}) { emitted = true })

	require.NoError(t, f.run("build"))

	cfg := f.bundlerConfig(t)
	assert.Equal(t, "/app/src/index.tsx", cfg.Entry["main"])
	assert.Equal(t, "index.js", cfg.OutFileName)
	assert.Equal(t, "node", cfg.Target)
	assert.Equal(t, "commonjs2", cfg.LibraryTarget)
	assert.True(t, cfg.NodeExternals)
	assert.True(t, emitted)
}

func TestBuildPlugin(t *testing.T) {
	f := newFixture(t, project.TypePlugin, nil)

	require.NoError(t, f.run("build"))
	assert.Equal(t, "/app/src/index.ts", f.bundlerConfig(t).Entry["main"])
}

func TestBundle(t *testing.T) {
	f := newFixture(t, project.TypeComponent, nil)

	require.NoError(t, f.run("bundle", "--skipLint"))

	assert.False(t, f.sh.ran("npx --no-install tslint"))
	cfg := f.bundlerConfig(t)
	assert.Equal(t, "umd", cfg.LibraryTarget)
	assert.Equal(t, "bundle.js", cfg.OutFileName)
	assert.Equal(t, bundler.ModeProduction, cfg.Mode)
}

func TestBundleDevelopment(t *testing.T) {
	f := newFixture(t, project.TypeComponent, nil)

	require.NoError(t, f.run("bundle", "--dev"))

	assert.True(t, f.sh.ran("npx --no-install tslint"))
	assert.Equal(t, bundler.ModeDevelopment, f.bundlerConfig(t).Mode)
}

func TestBundleRejectsProjects(t *testing.T) {
	f := newFixture(t, project.TypeProject, nil)

	err := f.run("bundle")
	assert.ErrorContains(t, err, `bundle is not supported for project type "project"`)
	assert.False(t, f.sh.ran("npx --no-install pri-bundler"))
}

func TestServiceWorkerScope(t *testing.T) {
	f := newFixture(t, project.TypeProject, map[string]string{
		"pri.json":            `{"useServiceWorker": true, "baseHref": "app"}`,
		"src/pages/index.tsx": "export default () => null",
	})
	f.host.Pipes.Register(PipeServiceWorker, suffix("\n// push"))

	_, err := f.host.Entry.Create(context.Background(), nil)
	require.NoError(t, err)

	assert.Contains(t, f.read(t, entry.EntryFile), `navigator.serviceWorker.register('/sw.js', {scope: "/app/"})`)
	sw := f.read(t, ServiceWorkerFile)
	assert.Contains(t, sw, "self.clients.claim()")
	assert.Contains(t, sw, "// push")
}

func TestStaticHTMLPaths(t *testing.T) {
	analysis := &entry.Analysis{Pages: []entry.Page{
		{Route: "/"},
		{Route: "/docs/intro"},
		{Route: "/docs/intro/"},
	}}
	assert.Equal(t, []string{"index.html", "docs/intro/index.html"}, staticHTMLPaths(analysis))
}
