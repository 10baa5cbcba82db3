package git

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pri/internal/shell"
)

type call struct {
	command string
	dir     string
}

type fakeShell struct {
	calls   []call
	outputs map[string]string
	fail    map[string]error
}

func (f *fakeShell) Exec(_ context.Context, command string, opts shell.Options) (string, error) {
	f.calls = append(f.calls, call{command, opts.Dir})
	if err := f.fail[command]; err != nil {
		return "", err
	}
	return f.outputs[command], nil
}

func (f *fakeShell) commands() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.command)
	}
	return out
}

func TestIsWorkingTreeClean(t *testing.T) {
	sh := &fakeShell{outputs: map[string]string{}}
	c := New(sh, "/repo")

	clean, err := c.IsWorkingTreeClean(context.Background())
	require.NoError(t, err)
	assert.True(t, clean)

	sh.outputs["git status --porcelain"] = " M src/index.ts"
	clean, err = c.IsWorkingTreeClean(context.Background())
	require.NoError(t, err)
	assert.False(t, clean)
	assert.Equal(t, "/repo", sh.calls[0].dir)
}

func TestAddAllAndCommit(t *testing.T) {
	sh := &fakeShell{}
	c := New(sh, "/repo")

	require.NoError(t, c.AddAllAndCommit(context.Background(), "it's done"))
	assert.Equal(t, []string{"git add -A", `git commit -m 'it'\''s done'`}, sh.commands())

	assert.Error(t, c.AddAllAndCommit(context.Background(), "  "))
}

func TestAddAllAndCommitStopsOnFailure(t *testing.T) {
	sh := &fakeShell{fail: map[string]error{"git add -A": errors.New("boom")}}

	err := New(sh, "/repo").AddAllAndCommit(context.Background(), "update")
	require.Error(t, err)
	assert.Equal(t, []string{"git add -A"}, sh.commands())
}

func TestPushAndTag(t *testing.T) {
	sh := &fakeShell{}
	c := New(sh, "/repo")
	ctx := context.Background()

	require.NoError(t, c.Push(ctx, ""))
	require.NoError(t, c.Push(ctx, "release"))
	require.NoError(t, c.Tag(ctx, "v1.2.0"))
	require.NoError(t, c.PushTags(ctx))

	assert.Equal(t, []string{
		"git push",
		"git push origin release",
		"git tag v1.2.0",
		"git push origin --tags",
	}, sh.commands())
}

func TestCurrentBranch(t *testing.T) {
	sh := &fakeShell{outputs: map[string]string{"git rev-parse --abbrev-ref HEAD": "main\n"}}

	branch, err := New(sh, "/repo").CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestSubmodulePaths(t *testing.T) {
	sh := &fakeShell{outputs: map[string]string{
		"git submodule status": " 1a2b3c packages/button (heads/main)\n-4d5e6f packages/table\n\n",
	}}

	c := New(sh, "/repo").In("/repo")
	paths, err := c.SubmodulePaths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"packages/button", "packages/table"}, paths)
	assert.Equal(t, "/repo", c.Dir())
}
