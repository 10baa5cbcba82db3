package packages

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pri/internal/git"
	"github.com/conneroisu/pri/internal/shell"
)

type fakeShell struct {
	status string
	calls  int
}

func (f *fakeShell) Exec(_ context.Context, command string, _ shell.Options) (string, error) {
	f.calls++
	return f.status, nil
}

const status = " 1a2b packages/button (heads/main)\n 3c4d packages/empty\n 5e6f packages/missing\n"

func seed(t *testing.T, fs afero.Fs, root string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Join(root, "packages", "missing"), 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "packages", "button", "package.json"),
		[]byte(`{"name": "@acme/button", "version": "1.0.0"}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "packages", "empty", "package.json"), nil, 0o644))
}

func TestList(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/repo")
	sh := &fakeShell{status: status}

	l := NewLister(fs, "/repo", git.New(sh, "/repo"), nil)

	pkgs, err := l.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "button", pkgs[0].Name)
	assert.Equal(t, "packages/button", pkgs[0].Path)
	assert.Equal(t, "@acme/button", pkgs[0].PackageJSON.Name)

	_, err = l.List(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, sh.calls)

	_, err = l.List(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, sh.calls)
}

func TestFind(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/repo")
	l := NewLister(fs, "/repo", git.New(&fakeShell{status: status}, "/repo"), nil)

	p, err := l.Find(context.Background(), "button")
	require.NoError(t, err)
	assert.Equal(t, "packages/button", p.Path)

	_, err = l.Find(context.Background(), "table")
	assert.EqualError(t, err, "[ERR_VALIDATION_FAILED] table not exist")
}

func TestEnsureLinks(t *testing.T) {
	root := t.TempDir()
	fs := afero.NewOsFs()
	seed(t, fs, root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	l := NewLister(fs, root, git.New(&fakeShell{status: status}, root), nil)
	require.NoError(t, l.EnsureLinks(context.Background(), true))

	target, err := os.Readlink(filepath.Join(root, "node_modules", "button"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "packages", "button"), target)

	target, err = os.Readlink(filepath.Join(root, "packages", "button", "node_modules"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules"), target)

	require.NoError(t, l.EnsureLinks(context.Background(), true))
}

func TestEnsureLinksNeedsSymlinks(t *testing.T) {
	l := NewLister(afero.NewMemMapFs(), "/repo", git.New(&fakeShell{}, "/repo"), nil)
	assert.Error(t, l.EnsureLinks(context.Background(), true))
}
