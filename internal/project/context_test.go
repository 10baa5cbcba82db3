package project

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestNewReadsConfigAndType(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/app/pri.json":     `{"title": "Shop"}`,
		"/app/package.json": `{"name": "shop", "pri": {"type": "component"}, "devDependencies": {"pri-plugin-x": "1.0.0"}}`,
	})

	ctx, err := New(Options{Root: "/app", Fs: fs, MajorCommand: "build"})
	require.NoError(t, err)

	assert.Equal(t, "/app", ctx.Root())
	assert.Equal(t, "Shop", ctx.Config().Title)
	assert.Equal(t, TypeComponent, ctx.Type())
	assert.Equal(t, "build", ctx.MajorCommand())
	assert.Equal(t, "shop", ctx.PackageJSON().Name)
	assert.Equal(t, []string{"pri-plugin-x"}, ctx.PackageJSON().AllDependencies())
	assert.Equal(t, "/app/src/pages", ctx.Path("src", "pages"))
}

func TestNewWithoutFiles(t *testing.T) {
	ctx, err := New(Options{Root: "/empty", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)

	assert.Equal(t, TypeUnknown, ctx.Type())
	assert.Nil(t, ctx.PackageJSON())
	assert.Equal(t, "dist", ctx.Config().DistDir)
}

func TestUnknownTypeFails(t *testing.T) {
	fs := newFs(t, map[string]string{"/app/package.json": `{"pri": {"type": "library"}}`})

	_, err := New(Options{Root: "/app", Fs: fs})
	assert.Error(t, err)
}

func TestReloadPicksUpChanges(t *testing.T) {
	fs := newFs(t, map[string]string{"/app/pri.json": `{"title": "A"}`})

	ctx, err := New(Options{Root: "/app", Fs: fs})
	require.NoError(t, err)
	require.Equal(t, "A", ctx.Config().Title)

	require.NoError(t, afero.WriteFile(fs, "/app/pri.json", []byte(`{"title": "B"}`), 0o644))
	require.NoError(t, ctx.Reload())
	assert.Equal(t, "B", ctx.Config().Title)

	require.NoError(t, afero.WriteFile(fs, "/app/pri.json", []byte(`{"title": 5}`), 0o644))
	assert.Error(t, ctx.Reload())
	assert.Equal(t, "B", ctx.Config().Title)
}

func TestOverridesWinOverFile(t *testing.T) {
	fs := newFs(t, map[string]string{"/app/pri.json": `{"publicPath": "/a/"}`})

	ctx, err := New(Options{Root: "/app", Fs: fs, Overrides: map[string]interface{}{"publicPath": "/b/"}})
	require.NoError(t, err)
	assert.Equal(t, "/b/", ctx.Config().PublicPath)

	require.NoError(t, ctx.SetConfigValue("publicPath", "/c/"))
	assert.Equal(t, "/c/", ctx.Config().PublicPath)

	assert.Error(t, ctx.SetConfigValue("publicPath", "ftp://nope"))
	assert.Equal(t, "/c/", ctx.Config().PublicPath)

	v, err := ctx.Viper()
	require.NoError(t, err)
	assert.Equal(t, "/c/", v.GetString("publicPath"))
}

func TestCustomConfigFile(t *testing.T) {
	fs := newFs(t, map[string]string{"/app/config/pri.prod.json": `{"distDir": "release"}`})

	ctx, err := New(Options{Root: "/app", ConfigFile: "config/pri.prod.json", Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, "release", ctx.Config().DistDir)
	assert.Equal(t, "/app/config/pri.prod.json", ctx.ConfigFile())
}

func TestParseType(t *testing.T) {
	for _, typ := range Types {
		parsed, err := ParseType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
	_, err := ParseType("app")
	assert.Error(t, err)
}

func TestDevelopmentFlag(t *testing.T) {
	ctx, err := New(Options{Root: "/app", Fs: afero.NewMemMapFs(), IsDevelopment: true})
	require.NoError(t, err)
	assert.True(t, ctx.IsDevelopment())

	ctx.SetDevelopment(false)
	ctx.SetType(TypePlugin)
	ctx.SetMajorCommand("bundle")
	assert.False(t, ctx.IsDevelopment())
	assert.Equal(t, TypePlugin, ctx.Type())
	assert.Equal(t, "bundle", ctx.MajorCommand())
}
