package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/pri/internal/commands"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/scaffold"
	"github.com/conneroisu/pri/internal/shell"
)

// DefaultTestCommand runs jest from the project's node_modules.
const DefaultTestCommand = "npx --no-install jest"

func registerTest(_ context.Context, api *plugins.API, opts Options) error {
	return api.RegisterCommand(commands.Registration{
		Path:        []string{"test"},
		Description: "Run tests",
		Action: func(ctx context.Context, _ *commands.Invocation) error {
			return runTest(ctx, api, opts)
		},
	})
}

func runTest(ctx context.Context, api *plugins.API, opts Options) error {
	command := opts.TestCommand
	if command == "" {
		command = DefaultTestCommand
	}

	script := strings.Join([]string{
		command,
		"--testRegex", shell.Quote(fmt.Sprintf(`/%s/.*\.tsx?$`, scaffold.TestsDir)),
		"--coverage",
	}, " ")

	if _, err := api.Shell.Exec(ctx, script, shell.Options{
		Dir:    api.Project.Root(),
		Stdout: api.Stdout,
		Stderr: api.Stderr,
	}); err != nil {
		return prierrors.WrapExec(err, prierrors.ErrCodeExecFailed, "tests failed")
	}

	report := filepath.Join(api.Project.Root(), "coverage", "lcov-report", "index.html")
	_, err := fmt.Fprintf(api.Stdout, "Open this url to see code coverage: file://%s\n", report)
	return err
}
