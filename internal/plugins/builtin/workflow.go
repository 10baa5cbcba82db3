package builtin

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/pri/internal/bundler"
	"github.com/conneroisu/pri/internal/ensure"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/lint"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/scaffold"
)

// ensureProjectFiles lets plugins queue their files, then writes them.
// Per-file failures are reported and do not stop the command.
func ensureProjectFiles(ctx context.Context, api *plugins.API) error {
	api.Events.Emit(ctx, events.BeforeEnsureFiles)

	// Files are still queued so checkProjectFiles knows them.
	if api.Project.IsLight() {
		api.Logger.Debug(ctx, "Light mode, project files not written", "queued", len(api.Files.Paths()))
		return nil
	}

	report, err := api.Files.Flush(ctx)
	api.Events.Emit(ctx, events.AfterEnsureFiles, report)

	if err != nil {
		if prierrors.IsFatal(err) {
			return err
		}
		failed := 0
		if report != nil {
			failed = report.Count(ensure.OutcomeFailed)
		}
		api.Logger.Warn(ctx, err, "Some project files could not be ensured", "failed", failed)
	}
	return nil
}

// checkProjectFiles rejects files at the project root, and directly under
// src for projects, that no white file rule accepts.
func checkProjectFiles(ctx context.Context, api *plugins.API) error {
	fs := api.Project.Fs()
	root := api.Project.Root()

	dirs := []string{""}
	if api.Project.Type() == project.TypeProject {
		dirs = append(dirs, sourceRoot(api))
	}

	var unexpected []string
	for _, dir := range dirs {
		entries, err := afero.ReadDir(fs, filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return prierrors.FileOperationError("read", filepath.Join(root, dir), err)
		}
		for _, entry := range entries {
			rel := path.Join(dir, entry.Name())
			if !api.WhiteFiles.Allowed(rel) {
				unexpected = append(unexpected, rel)
			}
		}
	}

	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return prierrors.NewValidationError(prierrors.ErrCodeValidationFailed,
			"Unexpected file or directory: "+strings.Join(unexpected, ", "))
	}

	api.Logger.Debug(ctx, "Project files checked")
	return nil
}

type prepareOptions struct {
	skipLint bool
	// clean removes the dist directory and .temp first.
	clean bool
}

// prepareBuild cleans the output, ensures project files, lints and checks
// the project tree. Lint errors abort the build.
func prepareBuild(ctx context.Context, api *plugins.API, opts Options, prep prepareOptions) error {
	if prep.clean {
		if err := cleanDist(ctx, api); err != nil {
			return err
		}
		if err := removeAll(api, ".temp"); err != nil {
			return err
		}
	}

	if err := ensureProjectFiles(ctx, api); err != nil {
		return err
	}

	if !prep.skipLint {
		if err := newLinter(api, opts).Lint(ctx, lint.Options{}); err != nil {
			return err
		}
	}

	return checkProjectFiles(ctx, api)
}

// cleanDist removes the configured dist directory.
func cleanDist(ctx context.Context, api *plugins.API) error {
	dist := api.Project.Config().DistDir
	api.Logger.Debug(ctx, "Cleaning dist directory", "dir", dist)
	return removeAll(api, dist)
}

func removeAll(api *plugins.API, rel string) error {
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == "." || rel == ".." || filepath.IsAbs(rel) || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return prierrors.NewValidationError(prierrors.ErrCodeValidationFailed,
			fmt.Sprintf("refusing to remove %q outside the project", rel))
	}

	full := api.Project.Path(rel)
	if err := api.Project.Fs().RemoveAll(full); err != nil {
		return prierrors.FileOperationError("remove", full, err)
	}
	return nil
}

func newLinter(api *plugins.API, opts Options) *lint.Linter {
	l := lint.New(api.Shell, api.Project.Root(), api.Logger)
	if opts.LintCommand != "" {
		l.LintCommand = opts.LintCommand
	}
	l.Stderr = api.Stderr
	return l
}

func newRunner(api *plugins.API, opts Options) *bundler.Runner {
	r := bundler.NewRunner(api.Project, api.Shell, api.BundlerConfig, api.Logger)
	if opts.BundlerCommand != "" {
		r.Command = opts.BundlerCommand
	}
	r.Stdout = api.Stdout
	r.Stderr = api.Stderr
	return r
}

// libraryEntry is the source entry of component, plugin and cli packages.
func libraryEntry(api *plugins.API) string {
	if api.Project.Type() == project.TypeComponent {
		return api.Project.Path(filepath.FromSlash(scaffold.ComponentEntry))
	}
	return api.Project.Path(filepath.FromSlash(scaffold.PluginEntry))
}

// sourceRoot is the slash-separated source directory, "src" by default.
func sourceRoot(api *plugins.API) string {
	if src := strings.Trim(filepath.ToSlash(api.Project.Config().SourceRoot), "/"); src != "" {
		return src
	}
	return "src"
}
