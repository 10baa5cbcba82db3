package lint

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/shell"
)

type fakeShell struct {
	commands []string
	dirs     []string
	err      error
}

func (f *fakeShell) Exec(_ context.Context, command string, opts shell.Options) (string, error) {
	f.commands = append(f.commands, command)
	f.dirs = append(f.dirs, opts.Dir)
	return "src/a.ts:1:1 quotemark", f.err
}

func newLinter(sh shell.Executor) *Linter {
	l := New(sh, "/app", nil)
	l.Stderr = io.Discard
	return l
}

func TestLint(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "defaults",
			want: []string{`npx --no-install tslint './src/**/*.?(ts|tsx)'`},
		},
		{
			name: "fix with project",
			opts: Options{Fix: true, Project: "tsconfig.json", Paths: []string{"src/index.ts"}},
			want: []string{
				"npx --no-install prettier --write src/index.ts",
				"npx --no-install tslint --project tsconfig.json --fix src/index.ts",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := &fakeShell{}
			require.NoError(t, newLinter(sh).Lint(context.Background(), tt.opts))
			assert.Equal(t, tt.want, sh.commands)
			for _, dir := range sh.dirs {
				assert.Equal(t, "/app", dir)
			}
		})
	}
}

func TestLintFailure(t *testing.T) {
	sh := &fakeShell{err: errors.New("exit 2")}

	err := newLinter(sh).Lint(context.Background(), Options{})
	require.Error(t, err)

	var pe *prierrors.PriError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, prierrors.ErrCodeExecFailed, pe.Code)
	assert.Equal(t, "src/a.ts:1:1 quotemark", pe.Context["output"])
}
