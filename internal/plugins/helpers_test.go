package plugins

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pri/internal/commands"
	"github.com/conneroisu/pri/internal/ensure"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/pipe"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/shell"
)

type execCall struct {
	command string
	opts    shell.Options
	stdin   string
}

// recordingShell records every script and echoes stdin followed by suffix.
type recordingShell struct {
	mu     sync.Mutex
	calls  []execCall
	suffix string
	err    error
}

func (r *recordingShell) Exec(_ context.Context, command string, opts shell.Options) (string, error) {
	var stdin string
	if opts.Stdin != nil {
		raw, _ := io.ReadAll(opts.Stdin)
		stdin = string(raw)
	}

	r.mu.Lock()
	r.calls = append(r.calls, execCall{command: command, opts: opts, stdin: stdin})
	r.mu.Unlock()

	if r.err != nil {
		return "", r.err
	}
	return stdin + r.suffix, nil
}

func (r *recordingShell) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.command)
	}
	return out
}

func newTestHost(t *testing.T, files map[string]string) (*Host, *recordingShell) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	require.NoError(t, fs.MkdirAll("/app", 0o755))

	p, err := project.New(project.Options{Root: "/app", Fs: fs})
	require.NoError(t, err)

	sh := &recordingShell{}
	return &Host{
		Commands:   commands.NewRegistry(),
		Events:     events.NewBus(nil),
		Pipes:      pipe.NewRegistry(),
		Files:      ensure.NewQueue(fs, p.Root(), nil),
		Project:    p,
		Shell:      sh,
		WhiteFiles: NewWhiteFiles(),
		Stdout:     &bytes.Buffer{},
		Stderr:     &bytes.Buffer{},
	}, sh
}

func builtin(name string, fn func(ctx context.Context, api *API) error) Plugin {
	if fn == nil {
		fn = func(context.Context, *API) error { return nil }
	}
	return Plugin{Name: name, Register: fn}
}

func loadedNames(l *Loader) []string {
	var names []string
	for _, p := range l.Plugins() {
		names = append(names, p.Name)
	}
	return names
}
