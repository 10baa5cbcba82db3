package bundler

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate(TemplateArgs{
		Title:               "Tom & Jerry",
		BaseHref:            "/app",
		DashboardServerPort: 9000,
		AppendHead:          `<link rel="icon" href="/favicon.ico">`,
		AppendBody:          `<noscript>Enable JavaScript</noscript>`,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, "<title>Tom &amp; Jerry</title>")
	assert.Contains(t, out, `<base href="/app/"/>`)
	assert.Contains(t, out, `<link rel="icon" href="/favicon.ico"/>`)
	assert.Contains(t, out, `<div id="root"></div>`)
	assert.Contains(t, out, "window.dashboardServerPort = 9000;")
	assert.Contains(t, out, "<noscript>Enable JavaScript</noscript>")
}

func TestRenderTemplateMinimal(t *testing.T) {
	out, err := RenderTemplate(TemplateArgs{Title: "app"})
	require.NoError(t, err)

	assert.NotContains(t, out, "<base")
	assert.NotContains(t, out, "dashboardServerPort")
}

func TestWriteTemplate(t *testing.T) {
	fs := afero.NewMemMapFs()

	path, err := WriteTemplate(fs, "/app", TemplateArgs{Title: "app"})
	require.NoError(t, err)
	assert.Equal(t, "/app/.temp/index.html", path)

	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<title>app</title>")
}
