package config

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/validation"
)

func load(t *testing.T, content string) (*Config, error) {
	t.Helper()

	fs := afero.NewMemMapFs()
	if content != "" {
		require.NoError(t, afero.WriteFile(fs, "/p/pri.json", []byte(content), 0o644))
	}

	v := NewViper(fs)
	if err := ReadFile(fs, v, "/p/pri.json"); err != nil {
		return nil, err
	}
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "dist", cfg.DistDir)
	assert.Equal(t, "main.js", cfg.OutFileName)
	assert.Equal(t, "main.css", cfg.OutCSSFileName)
	assert.Equal(t, "/", cfg.PublicPath)
	assert.True(t, cfg.CSSExtract)
	assert.False(t, cfg.UseServiceWorker)
	assert.Equal(t, 8080, cfg.DevPort)
	assert.Empty(t, cfg.Plugins.IncludeRoots)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := load(t, `{
		"distDir": "build",
		"publicPath": "https://cdn.example.com/app/",
		"useServiceWorker": true,
		"plugins": {"includeRoots": ["tools/plugins"], "disabled": ["pri-plugin-old"]}
	}`)
	require.NoError(t, err)

	assert.Equal(t, "build", cfg.DistDir)
	assert.Equal(t, "https://cdn.example.com/app/", cfg.PublicPath)
	assert.True(t, cfg.UseServiceWorker)
	assert.Equal(t, "main.js", cfg.OutFileName)
	assert.Equal(t, []string{"tools/plugins"}, cfg.Plugins.IncludeRoots)
	assert.True(t, cfg.Plugins.IsDisabled("pri-plugin-old"))
	assert.False(t, cfg.Plugins.IsDisabled("pri-plugin-new"))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PRI_DISTDIR", "out")

	cfg, err := load(t, `{"distDir": "build"}`)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.DistDir)
}

func TestSchemaViolation(t *testing.T) {
	_, err := load(t, `{"useHttps": "yes"}`)
	require.Error(t, err)

	var se *validation.SchemaError
	assert.True(t, errors.As(err, &se))

	var pe *prierrors.PriError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, prierrors.ErrCodeConfigInvalid, pe.Code)
	assert.Equal(t, "/p/pri.json", pe.FilePath)
}

func TestMalformedJSON(t *testing.T) {
	_, err := load(t, `{"distDir": `)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dist traversal", `{"distDir": "../outside"}`},
		{"absolute dist", `{"distDir": "/tmp/dist"}`},
		{"nested out file", `{"outFileName": "js/main.js"}`},
		{"bad public path", `{"publicPath": "ftp://cdn"}`},
		{"bad disabled name", `{"plugins": {"disabled": ["a;b"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.content)
			assert.Error(t, err)
		})
	}
}
