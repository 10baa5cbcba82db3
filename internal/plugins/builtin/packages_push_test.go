package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pri/internal/project"
)

func newPackagesFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	f := newFixtureOn(t, afero.NewOsFs(), root, project.TypeProject, map[string]string{
		"packages/button/package.json": `{"name": "@acme/button", "version": "0.1.0"}`,
		"packages/table/package.json":  `{"name": "@acme/table", "version": "0.1.0"}`,
	})
	f.sh.outputs["git submodule status"] = " 1a2b packages/button (heads/main)\n 3c4d packages/table (heads/main)"
	f.sh.outputs["git status --porcelain"] = " M index.ts"
	return f
}

func TestPackagesPush(t *testing.T) {
	f := newPackagesFixture(t)

	require.NoError(t, f.run("packages", "push", "button", "fix it"))

	pkgDir := filepath.Join(f.root, "packages", "button")
	var committed bool
	for _, c := range f.sh.calls {
		if c.command == `git commit -m 'fix it'` {
			committed = true
			assert.Equal(t, pkgDir, c.dir)
		}
	}
	assert.True(t, committed)
	assert.True(t, f.sh.ran("git push"))
	assert.Empty(t, f.prompter.titles)

	target, err := os.Readlink(filepath.Join(f.root, "node_modules", "button"))
	require.NoError(t, err)
	assert.Equal(t, pkgDir, target)
}

func TestPackagesPushPrompts(t *testing.T) {
	f := newPackagesFixture(t)
	f.prompter.selects = []string{"table"}
	f.prompter.inputs = []string{""}

	require.NoError(t, f.run("packages", "push"))

	assert.Equal(t, []string{"Choose packages to push:", "Commit message:"}, f.prompter.titles)
	assert.True(t, f.sh.ran("git commit -m update."))
}

func TestPackagesPushUnmodified(t *testing.T) {
	f := newPackagesFixture(t)
	f.sh.outputs["git status --porcelain"] = ""

	err := f.run("packages", "push", "button", "msg")
	assert.ErrorContains(t, err, "button has not modified.")
	assert.False(t, f.sh.ran("git commit"))
}

func TestPackagesPushUnknownPackage(t *testing.T) {
	f := newPackagesFixture(t)

	assert.ErrorContains(t, f.run("packages", "push", "chart"), "chart not exist")
}
