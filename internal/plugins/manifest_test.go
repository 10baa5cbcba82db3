package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pri/internal/events"
	prierrors "github.com/conneroisu/pri/internal/errors"
)

const deployerManifest = `name: deployer
description: Deploys the site
version: 1.2.0
priority: 3
commands:
  - name: deploy site
    description: Deploy the site
    args: [target]
    options:
      - name: env
        alias: e
        type: string
        default: staging
      - name: dry-run
        type: bool
    before: ./check.sh
    run: ./deploy.sh
expand:
  - name: deploy site
    after: ./cleanup.sh
pipes:
  - name: serviceWorker
    run: ./sw.sh
files:
  - path: .gitignore
    lines: [node_modules, .temp]
  - path: tsconfig.json
    merge:
      compilerOptions:
        strict: true
  - path: README.md
    content: "# app\n"
    ifAbsent: true
events:
  - name: afterProdBuild
    once: true
    run: ./notify.sh
whiteFiles: [docs, "*.md"]
`

func loadDeployer(t *testing.T, extra map[string]string) (*Host, *recordingShell) {
	t.Helper()

	files := map[string]string{"/app/plugins/deployer/pri-plugin.yaml": deployerManifest}
	for k, v := range extra {
		files[k] = v
	}

	host, sh := newTestHost(t, files)
	l := NewLoader(host)
	l.AddIncludeRoots("plugins")
	require.NoError(t, l.Load(context.Background()))

	return host, sh
}

func TestReadManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/pri-plugin.yaml", []byte(deployerManifest), 0o644))

	m, err := ReadManifest(fs, "/p")
	require.NoError(t, err)

	assert.Equal(t, "deployer", m.Name)
	assert.Equal(t, 3, m.Priority)
	require.Len(t, m.Commands, 1)
	assert.Equal(t, "deploy site", m.Commands[0].Name)
	assert.Len(t, m.Commands[0].Options, 2)
	require.NotNil(t, m.Files[2].Content)
	assert.Equal(t, "# app\n", *m.Files[2].Content)

	p := m.Plugin("/p", "/p", SourceInclude)
	assert.Equal(t, "1.2.0", p.Version)
	assert.NotNil(t, p.Register)
}

func TestReadManifestRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"missing name", "description: nameless\n"},
		{"unknown field", "name: x\nhooks: []\n"},
		{"bad option alias", "name: x\ncommands:\n  - name: a\n    run: b\n    options:\n      - name: env\n        alias: ee\n"},
		{"command without scripts", "name: x\ncommands:\n  - name: idle\n"},
		{"command with only hooks", "name: x\ncommands:\n  - name: idle\n    before: ./check.sh\n    after: ./done.sh\n"},
		{"command with blank run", "name: x\ncommands:\n  - name: idle\n    run: \"  \"\n"},
		{"file escapes project", "name: x\nfiles:\n  - path: ../outside\n    content: x\n"},
		{"file with two kinds", "name: x\nfiles:\n  - path: a\n    content: x\n    lines: [y]\n"},
		{"file with no kind", "name: x\nfiles:\n  - path: a\n"},
		{"bad constraint", "name: x\nrequires: not-a-range\n"},
		{"not yaml", "name: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/p/pri-plugin.yaml", []byte(tt.manifest), 0o644))

			_, err := ReadManifest(fs, "/p")
			require.Error(t, err)

			var pe *prierrors.PriError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, prierrors.ErrCodePluginManifest, pe.Code)
		})
	}
}

func TestManifestCommandRunsScripts(t *testing.T) {
	host, sh := loadDeployer(t, nil)

	node, ok := host.Commands.Lookup([]string{"deploy", "site"})
	require.True(t, ok)
	assert.Equal(t, "deployer", node.Owner)

	err := host.Commands.Dispatch(context.Background(), []string{"deploy", "site", "prod", "--env", "production", "--dry-run"})
	require.NoError(t, err)

	require.Equal(t, []string{"./check.sh", "./deploy.sh", "./cleanup.sh"}, sh.commands())

	run := sh.calls[1]
	assert.Equal(t, []string{"prod"}, run.opts.Args)
	assert.Equal(t, "/app", run.opts.Dir)
	assert.Contains(t, run.opts.Env, "PRI_OPT_ENV=production")
	assert.Contains(t, run.opts.Env, "PRI_OPT_DRY_RUN=true")
	assert.Contains(t, run.opts.Env, "PRI_COMMAND=deploy site")
	assert.Contains(t, run.opts.Env, "PRI_PLUGIN_DIR=/app/plugins/deployer")
}

func TestManifestCommandUsesDefaults(t *testing.T) {
	host, sh := loadDeployer(t, nil)

	require.NoError(t, host.Commands.Dispatch(context.Background(), []string{"deploy", "site"}))
	assert.Contains(t, sh.calls[1].opts.Env, "PRI_OPT_ENV=staging")
}

func TestManifestCommandFailure(t *testing.T) {
	host, sh := loadDeployer(t, nil)
	sh.err = errors.New("exit status 3")

	err := host.Commands.Dispatch(context.Background(), []string{"deploy", "site"})
	require.Error(t, err)
	assert.Equal(t, []string{"./check.sh"}, sh.commands())
}

func TestManifestPipe(t *testing.T) {
	host, sh := loadDeployer(t, nil)
	sh.suffix = "\nself.addEventListener('fetch', () => {})\n"

	out, err := host.Pipes.Apply(context.Background(), "serviceWorker", "self.skipWaiting()")
	require.NoError(t, err)
	assert.Equal(t, "self.skipWaiting()\nself.addEventListener('fetch', () => {})\n", out)

	call := sh.calls[0]
	assert.Equal(t, "./sw.sh", call.command)
	assert.Equal(t, "self.skipWaiting()", call.stdin)
	assert.True(t, call.opts.Raw)
}

func TestManifestFiles(t *testing.T) {
	host, _ := loadDeployer(t, map[string]string{
		"/app/.gitignore": "node_modules\ndist\n",
		"/app/README.md":  "# existing\n",
	})

	_, err := host.Files.Flush(context.Background())
	require.NoError(t, err)

	fs := host.Project.Fs()
	gitignore, err := afero.ReadFile(fs, "/app/.gitignore")
	require.NoError(t, err)
	assert.Equal(t, "node_modules\ndist\n.temp\n", string(gitignore))

	tsconfig, err := afero.ReadFile(fs, "/app/tsconfig.json")
	require.NoError(t, err)
	assert.Contains(t, string(tsconfig), `"strict": true`)

	readme, err := afero.ReadFile(fs, "/app/README.md")
	require.NoError(t, err)
	assert.Equal(t, "# existing\n", string(readme))
}

func TestManifestEvents(t *testing.T) {
	host, sh := loadDeployer(t, nil)

	host.Events.Emit(context.Background(), events.AfterProdBuild)
	host.Events.Emit(context.Background(), events.AfterProdBuild)

	require.Equal(t, []string{"./notify.sh"}, sh.commands())
	assert.Contains(t, sh.calls[0].opts.Env, "PRI_EVENT=afterProdBuild")
}

func TestManifestWhiteFiles(t *testing.T) {
	host, _ := loadDeployer(t, nil)

	assert.True(t, host.WhiteFiles.Allowed("docs/guide/intro.txt"))
	assert.True(t, host.WhiteFiles.Allowed("CHANGELOG.md"))
	assert.False(t, host.WhiteFiles.Allowed("scripts/build.sh"))
}

func TestWhiteFilesRules(t *testing.T) {
	w := NewWhiteFiles()
	assert.False(t, w.Allowed("anything"))

	w.Add(func(rel string) bool { return rel == ".editorconfig" })
	w.AddPattern("mocks")

	assert.Equal(t, 2, w.Len())
	assert.True(t, w.Allowed(".editorconfig"))
	assert.True(t, w.Allowed("mocks/user.ts"))
	assert.False(t, w.Allowed("mocksy"))
}
