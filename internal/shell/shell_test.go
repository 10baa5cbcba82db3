package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prierrors "github.com/conneroisu/pri/internal/errors"
)

func TestExecCapturesStdout(t *testing.T) {
	sh := New(nil)

	out, err := sh.Exec(context.Background(), "echo hello; echo world", Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", out)
}

func TestExecEnvAndArgs(t *testing.T) {
	sh := New(nil)

	out, err := sh.Exec(context.Background(), `echo "$PRI_TARGET $1 $2"`, Options{
		Env:  []string{"PRI_TARGET=dist"},
		Args: []string{"-v", "two"},
	})
	require.NoError(t, err)
	assert.Equal(t, "dist -v two", out)
}

func TestExecDir(t *testing.T) {
	dir := t.TempDir()
	sh := New(nil)

	out, err := sh.Exec(context.Background(), "pwd", Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, out)
}

func TestExecStdinAndStream(t *testing.T) {
	sh := New(nil)
	var live bytes.Buffer

	out, err := sh.Exec(context.Background(), `read line; echo "got $line"`, Options{
		Stdin:  strings.NewReader("content\n"),
		Stdout: &live,
	})
	require.NoError(t, err)
	assert.Equal(t, "got content", out)
	assert.Equal(t, "got content\n", live.String())
}

func TestExecNonZeroExit(t *testing.T) {
	sh := New(nil)

	_, err := sh.Exec(context.Background(), "echo oops >&2; exit 3", Options{})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Error(), "oops")
	assert.True(t, errors.Is(err, prierrors.ErrExecFailed))
	assert.True(t, prierrors.IsFatal(err))
}

func TestExecTolerateFailure(t *testing.T) {
	sh := New(nil)

	out, err := sh.Exec(context.Background(), "echo partial; exit 1", Options{TolerateFailure: true})
	require.NoError(t, err)
	assert.Equal(t, "partial", out)
}

func TestExecParseError(t *testing.T) {
	sh := New(nil)

	_, err := sh.Exec(context.Background(), "if then fi (", Options{})
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	sh := New(nil)

	out, err := sh.Exec(context.Background(), "echo "+Quote("it's $HOME; ok"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "it's $HOME; ok", out)
}

func TestExecRaw(t *testing.T) {
	sh := New(nil)

	out, err := sh.Exec(context.Background(), "cat", Options{Stdin: strings.NewReader("a\nb\n\n"), Raw: true})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n\n", out)
}
