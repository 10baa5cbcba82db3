// Package shell runs POSIX shell commands through an in-process interpreter
// so scripts behave the same on every platform pri runs on.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/logging"
)

// killTimeout is how long a child gets between the interrupt and the kill
// signal once the context is cancelled.
const killTimeout = 3 * time.Second

// Options configures one execution.
type Options struct {
	Dir string
	// Env entries (KEY=value) are added to the inherited environment.
	Env   []string
	Args  []string
	Stdin io.Reader
	// Stdout and Stderr additionally receive the live output.
	Stdout io.Writer
	Stderr io.Writer
	// TolerateFailure turns a non-zero exit into a logged warning.
	TolerateFailure bool
	// Raw returns stdout byte for byte instead of trimming trailing newlines.
	Raw bool
}

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Executor runs shell commands.
type Executor interface {
	Exec(ctx context.Context, command string, opts Options) (string, error)
}

// Shell is the interpreter-backed Executor.
type Shell struct {
	logger  logging.Logger
	environ func() []string
}

// New creates a Shell that inherits the process environment.
func New(logger logging.Logger) *Shell {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Shell{
		logger:  logger.WithComponent("shell"),
		environ: os.Environ,
	}
}

// Exec runs command and returns its stdout without the trailing newline
// unless opts.Raw is set.
func (s *Shell) Exec(ctx context.Context, command string, opts Options) (string, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "command")
	if err != nil {
		return "", prierrors.NewExecError(prierrors.ErrCodeExecFailed, "failed to parse command", err).
			WithContext("command", command)
	}

	var stdout, stderr bytes.Buffer
	var out io.Writer = &stdout
	var errOut io.Writer = &stderr
	if opts.Stdout != nil {
		out = io.MultiWriter(&stdout, opts.Stdout)
	}
	if opts.Stderr != nil {
		errOut = io.MultiWriter(&stderr, opts.Stderr)
	}

	env := append(s.environ(), opts.Env...)

	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(opts.Stdin, out, errOut),
		interp.ExecHandlers(func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
			return interp.DefaultExecHandler(killTimeout)
		}),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}
	if len(opts.Args) > 0 {
		runnerOpts = append(runnerOpts, interp.Params(append([]string{"--"}, opts.Args...)...))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return "", prierrors.NewExecError(prierrors.ErrCodeExecFailed, "failed to create interpreter", err)
	}

	s.logger.Debug(ctx, "Running command", "command", command, "dir", opts.Dir)

	err = runner.Run(ctx, prog)
	result := stdout.String()
	if !opts.Raw {
		result = strings.TrimRight(result, "\n")
	}
	if err == nil {
		return result, nil
	}

	var status interp.ExitStatus
	if errors.As(err, &status) {
		exitErr := &ExitError{Command: command, Code: int(status), Stderr: stderr.String()}
		if opts.TolerateFailure {
			s.logger.Warn(ctx, exitErr, "Command failed, continuing", "command", command)
			return result, nil
		}
		return result, prierrors.WrapExec(exitErr, prierrors.ErrCodeExecFailed, "command failed").
			WithContext("command", command)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	if opts.TolerateFailure {
		s.logger.Warn(ctx, err, "Command failed, continuing", "command", command)
		return result, nil
	}

	return result, prierrors.WrapExec(err, prierrors.ErrCodeExecFailed, "command failed").
		WithContext("command", command)
}

// Quote quotes s for safe interpolation into a command string.
func Quote(s string) string {
	quoted, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return quoted
}
