package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/prompt"
	"github.com/conneroisu/pri/internal/shell"
)

const stats = `{"hash": "abc", "time": 12, "assets": [{"name": "main.js", "size": 42}]}`

type call struct {
	command string
	dir     string
}

// fakeShell answers commands by prefix and records every call.
type fakeShell struct {
	mu      sync.Mutex
	calls   []call
	outputs map[string]string
	fail    map[string]error
}

func newFakeShell() *fakeShell {
	return &fakeShell{
		outputs: map[string]string{
			"node --version":               "v18.0.0",
			"npx --no-install pri-bundler": stats,
		},
		fail: map[string]error{},
	}
}

func (f *fakeShell) Exec(_ context.Context, command string, opts shell.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{command: command, dir: opts.Dir})
	for prefix, err := range f.fail {
		if strings.HasPrefix(command, prefix) {
			return "", err
		}
	}
	for prefix, out := range f.outputs {
		if strings.HasPrefix(command, prefix) {
			return out, nil
		}
	}
	return "", nil
}

func (f *fakeShell) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.command)
	}
	return out
}

// ran reports whether any command starts with prefix.
func (f *fakeShell) ran(prefix string) bool {
	for _, c := range f.commands() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// index returns the position of the first command starting with prefix.
func (f *fakeShell) index(prefix string) int {
	for i, c := range f.commands() {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

type fakePrompter struct {
	selects []string
	inputs  []string
	titles  []string
}

func (p *fakePrompter) Select(_ context.Context, title string, _ []string) (string, error) {
	p.titles = append(p.titles, title)
	if len(p.selects) == 0 {
		return "", prompt.ErrCancelled
	}
	v := p.selects[0]
	p.selects = p.selects[1:]
	return v, nil
}

func (p *fakePrompter) Input(_ context.Context, title, _ string) (string, error) {
	p.titles = append(p.titles, title)
	if len(p.inputs) == 0 {
		return "", prompt.ErrCancelled
	}
	v := p.inputs[0]
	p.inputs = p.inputs[1:]
	return v, nil
}

type fixture struct {
	host     *plugins.Host
	loader   *plugins.Loader
	fs       afero.Fs
	root     string
	sh       *fakeShell
	prompter *fakePrompter
	stdout   *bytes.Buffer
}

func packageJSON(typ project.Type) string {
	if typ == project.TypeUnknown {
		return `{"name": "app", "version": "1.2.3"}`
	}
	return `{"name": "app", "version": "1.2.3", "pri": {"type": "` + string(typ) + `"}}`
}

// newFixture loads the built-in plugins into a host over an in-memory
// project rooted at /app.
func newFixture(t *testing.T, typ project.Type, files map[string]string) *fixture {
	t.Helper()
	return newFixtureOn(t, afero.NewMemMapFs(), "/app", typ, files)
}

func newFixtureOn(t *testing.T, fs afero.Fs, root string, typ project.Type, files map[string]string) *fixture {
	t.Helper()

	all := map[string]string{"package.json": packageJSON(typ)}
	for k, v := range files {
		all[k] = v
	}
	for rel, content := range all {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, fs.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, afero.WriteFile(fs, full, []byte(content), 0o644))
	}

	p, err := project.New(project.Options{Root: root, Fs: fs})
	require.NoError(t, err)

	sh := newFakeShell()
	host := plugins.NewHost(p, sh, nil)
	stdout := &bytes.Buffer{}
	host.Stdout = stdout
	host.Stderr = io.Discard

	prompter := &fakePrompter{}
	loader := plugins.NewLoader(host)
	require.NoError(t, loader.SetBuiltinPlugins(Plugins(Options{Version: "1.0.0", Prompter: prompter})))
	require.NoError(t, loader.Load(context.Background()))

	return &fixture{
		host:     host,
		loader:   loader,
		fs:       fs,
		root:     root,
		sh:       sh,
		prompter: prompter,
		stdout:   stdout,
	}
}

func (f *fixture) run(args ...string) error {
	return f.host.Commands.Dispatch(context.Background(), args)
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.root, filepath.FromSlash(rel))
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	raw, err := afero.ReadFile(f.fs, f.path(rel))
	require.NoError(t, err)
	return string(raw)
}

func (f *fixture) exists(rel string) bool {
	ok, _ := afero.Exists(f.fs, f.path(rel))
	return ok
}

func (f *fixture) readJSON(t *testing.T, rel string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(f.read(t, rel)), v))
}
