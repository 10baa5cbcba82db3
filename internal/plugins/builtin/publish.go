package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/conneroisu/pri/internal/commands"
	"github.com/conneroisu/pri/internal/ensure"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/git"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/shell"
)

type publishOptions struct {
	Tag         string
	Bundle      bool
	SkipLint    bool
	SkipNpm     bool
	Semver      string
	CommitOnly  bool
	PublishOnly bool
	Branch      string
}

func parsePublishOptions(inv *commands.Invocation) publishOptions {
	return publishOptions{
		Tag:         inv.String("tag"),
		Bundle:      inv.Bool("bundle"),
		SkipLint:    inv.Bool("skipLint"),
		SkipNpm:     inv.Bool("skipNpm"),
		Semver:      strings.TrimSpace(inv.String("semver")),
		CommitOnly:  inv.Bool("commitOnly"),
		PublishOnly: inv.Bool("publishOnly"),
		Branch:      inv.String("branch"),
	}
}

func registerPublish(_ context.Context, api *plugins.API, opts Options) error {
	return api.RegisterCommand(commands.Registration{
		Path:        []string{"publish"},
		Description: "Publish this package",
		Options: []commands.Option{
			{Name: "tag", Description: "npm tag", Kind: commands.KindString},
			{Name: "bundle", Description: "Create bundle", Kind: commands.KindBool},
			{Name: "skipLint", Description: "Skip lint", Kind: commands.KindBool},
			{Name: "skipNpm", Description: "Skip npm publish", Kind: commands.KindBool},
			{Name: "semver", Description: "Semver version: patch minor major", Kind: commands.KindString},
			{Name: "commitOnly", Description: "Commit version update without publishing", Kind: commands.KindBool},
			{Name: "publishOnly", Description: "Publish without commit or any other git workflow", Kind: commands.KindBool},
			{Name: "branch", Description: "Branch name", Kind: commands.KindString},
		},
		Action: func(ctx context.Context, inv *commands.Invocation) error {
			return runPublish(ctx, api, opts, parsePublishOptions(inv))
		},
	})
}

func runPublish(ctx context.Context, api *plugins.API, opts Options, in publishOptions) error {
	switch api.Project.Type() {
	case project.TypeComponent, project.TypePlugin, project.TypeCLI:
	default:
		return prierrors.UnsupportedProjectType("publish", string(api.Project.Type()), "only component, plugin and cli packages are published")
	}
	if in.CommitOnly && in.PublishOnly {
		return prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, "--commitOnly and --publishOnly cannot be combined")
	}

	pkg := api.Project.PackageJSON()
	if pkg == nil {
		return prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, "package.json not found")
	}

	next, err := NextVersion(pkg.Version, in.Semver)
	if err != nil {
		return err
	}

	repo := git.New(api.Shell, api.Project.Root())
	if !in.PublishOnly {
		clean, err := repo.IsWorkingTreeClean(ctx)
		if err != nil {
			return err
		}
		if !clean {
			return prierrors.NewValidationError(prierrors.ErrCodeValidationFailed,
				"working tree is not clean, commit your changes before publishing")
		}
	}

	if err := buildLibrary(ctx, api, opts, BuildOptions{}, in.SkipLint); err != nil {
		return err
	}
	if in.Bundle {
		if err := runBundle(ctx, api, opts, bundleOptions{SkipLint: true}); err != nil {
			return err
		}
	}

	if err := writeVersion(ctx, api, next); err != nil {
		return err
	}
	api.Logger.Info(ctx, "Version bumped", "from", pkg.Version, "to", next)

	if !in.PublishOnly {
		tag := "v" + next
		if err := repo.AddAllAndCommit(ctx, tag); err != nil {
			return err
		}
		if err := repo.Tag(ctx, tag); err != nil {
			return err
		}
		if in.CommitOnly {
			return nil
		}

		branch := in.Branch
		if branch == "" {
			if branch, err = repo.CurrentBranch(ctx); err != nil {
				return err
			}
		}
		if err := repo.Push(ctx, branch); err != nil {
			return err
		}
		if err := repo.PushTags(ctx); err != nil {
			return err
		}
	}

	if in.SkipNpm {
		return nil
	}

	script := "npm publish"
	if in.Tag != "" {
		script += " --tag " + shell.Quote(in.Tag)
	}
	if _, err := api.Shell.Exec(ctx, script, shell.Options{
		Dir:    api.Project.Root(),
		Stdout: api.Stdout,
		Stderr: api.Stderr,
	}); err != nil {
		return prierrors.WrapExec(err, prierrors.ErrCodeExecFailed, "npm publish failed")
	}

	api.Logger.Info(ctx, "Published", "name", pkg.Name, "version", next)
	return nil
}

// NextVersion applies bump to current. bump is patch (the default), minor,
// major or an explicit version greater than current.
func NextVersion(current, bump string) (string, error) {
	if current == "" {
		current = "0.0.0"
	}
	v, err := semver.NewVersion(current)
	if err != nil {
		return "", prierrors.NewValidationError(prierrors.ErrCodeValidationFailed,
			fmt.Sprintf("package.json version %q is not a semantic version", current))
	}

	var next semver.Version
	switch bump {
	case "", "patch":
		next = v.IncPatch()
	case "minor":
		next = v.IncMinor()
	case "major":
		next = v.IncMajor()
	default:
		explicit, err := semver.NewVersion(bump)
		if err != nil {
			return "", prierrors.NewValidationError(prierrors.ErrCodeValidationFailed,
				fmt.Sprintf("--semver must be patch, minor, major or a version, got %q", bump))
		}
		if !explicit.GreaterThan(v) {
			return "", prierrors.NewValidationError(prierrors.ErrCodeValidationFailed,
				fmt.Sprintf("version %s is not greater than %s", explicit, v))
		}
		next = *explicit
	}
	return next.String(), nil
}

func writeVersion(ctx context.Context, api *plugins.API, version string) error {
	q := ensure.NewQueue(api.Project.Fs(), api.Project.Root(), api.Logger)
	q.Add("package.json", ensure.MergeJSON(map[string]interface{}{"version": version}))
	if _, err := q.Flush(ctx); err != nil {
		return err
	}
	return api.Project.Reload()
}
