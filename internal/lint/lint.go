// Package lint runs the project's TypeScript linter and formatter.
package lint

import (
	"context"
	"io"
	"os"
	"strings"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/logging"
	"github.com/conneroisu/pri/internal/shell"
)

// Default tool invocations. Both run the copies installed in the project.
const (
	DefaultLintCommand   = "npx --no-install tslint"
	DefaultFormatCommand = "npx --no-install prettier"
)

// DefaultPaths are linted when Options.Paths is empty.
var DefaultPaths = []string{"./src/**/*.?(ts|tsx)"}

// Options configures a lint run.
type Options struct {
	// Fix applies automatic fixes and formats the files with prettier.
	Fix   bool
	Paths []string
	// Project points tslint at a tsconfig for type-aware rules.
	Project string
}

// Linter lints a project directory.
type Linter struct {
	shell  shell.Executor
	dir    string
	logger logging.Logger

	LintCommand   string
	FormatCommand string
	Stderr        io.Writer
}

// New creates a linter for the project at dir.
func New(sh shell.Executor, dir string, logger logging.Logger) *Linter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Linter{
		shell:         sh,
		dir:           dir,
		logger:        logger.WithComponent("lint"),
		LintCommand:   DefaultLintCommand,
		FormatCommand: DefaultFormatCommand,
		Stderr:        os.Stderr,
	}
}

// Lint runs the linter. Any finding fails the run.
func (l *Linter) Lint(ctx context.Context, opts Options) error {
	paths := opts.Paths
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = shell.Quote(p)
	}

	if opts.Fix {
		format := l.FormatCommand + " --write " + strings.Join(quoted, " ")
		if _, err := l.shell.Exec(ctx, format, shell.Options{Dir: l.dir, Stderr: l.Stderr}); err != nil {
			return prierrors.WrapExec(err, prierrors.ErrCodeExecFailed, "format failed")
		}
	}

	args := []string{l.LintCommand}
	if opts.Project != "" {
		args = append(args, "--project", shell.Quote(opts.Project))
	}
	if opts.Fix {
		args = append(args, "--fix")
	}
	args = append(args, quoted...)

	perf := logging.StartOperation(l.logger, "lint")
	out, err := l.shell.Exec(ctx, strings.Join(args, " "), shell.Options{Dir: l.dir, Stderr: l.Stderr})
	if err != nil {
		perf.EndWithError(ctx, err)
		e := prierrors.WrapExec(err, prierrors.ErrCodeExecFailed, "lint failed")
		if out = strings.TrimSpace(out); out != "" {
			e = e.WithContext("output", out)
		}
		return e
	}
	perf.End(ctx)

	return nil
}
