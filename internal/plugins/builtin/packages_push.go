package builtin

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/pri/internal/commands"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/git"
	"github.com/conneroisu/pri/internal/packages"
	"github.com/conneroisu/pri/internal/plugins"
)

const defaultPushMessage = "update."

func registerPackagesPush(_ context.Context, api *plugins.API, opts Options) error {
	return api.RegisterCommand(commands.Registration{
		Path:        []string{"packages", "push"},
		Description: "Push package.",
		Args:        []string{"packageName", "message"},
		Action: func(ctx context.Context, inv *commands.Invocation) error {
			return runPackagesPush(ctx, api, opts, inv.Arg(0), inv.Arg(1))
		},
	})
}

func runPackagesPush(ctx context.Context, api *plugins.API, opts Options, name, message string) error {
	repo := git.New(api.Shell, api.Project.Root())
	lister := packages.NewLister(api.Project.Fs(), api.Project.Root(), repo, api.Logger)

	if err := lister.EnsureLinks(ctx, true); err != nil {
		return err
	}

	if name == "" {
		all, err := lister.List(ctx, true)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			return prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, "no packages found under "+packages.Dir)
		}
		names := make([]string, 0, len(all))
		for _, p := range all {
			names = append(names, p.Name)
		}
		if name, err = opts.Prompter.Select(ctx, "Choose packages to push:", names); err != nil {
			return err
		}
	}

	pkg, err := lister.Find(ctx, name)
	if err != nil {
		return err
	}

	pkgRepo := repo.In(filepath.Join(api.Project.Root(), filepath.FromSlash(pkg.Path)))
	clean, err := pkgRepo.IsWorkingTreeClean(ctx)
	if err != nil {
		return err
	}
	if clean {
		return prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, name+" has not modified.")
	}

	if message == "" {
		if message, err = opts.Prompter.Input(ctx, "Commit message:", defaultPushMessage); err != nil {
			return err
		}
	}
	if message == "" {
		message = defaultPushMessage
	}

	if err := pkgRepo.AddAllAndCommit(ctx, message); err != nil {
		return err
	}
	if err := pkgRepo.Push(ctx, ""); err != nil {
		return err
	}

	api.Logger.Info(ctx, "Package pushed", "package", name)
	return nil
}
