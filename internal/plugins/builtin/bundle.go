package builtin

import (
	"context"

	"github.com/conneroisu/pri/internal/bundler"
	"github.com/conneroisu/pri/internal/commands"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/project"
)

type bundleOptions struct {
	SkipLint bool
	Dev      bool
}

func parseBundleOptions(inv *commands.Invocation) bundleOptions {
	return bundleOptions{
		SkipLint: inv.Bool("skipLint"),
		Dev:      inv.Bool("dev"),
	}
}

func registerBundle(_ context.Context, api *plugins.API, opts Options) error {
	return api.RegisterCommand(commands.Registration{
		Path:        []string{"bundle"},
		Description: "Create a UMD bundle of the component",
		Options: []commands.Option{
			{Name: "skipLint", Description: "Skip lint", Kind: commands.KindBool},
			{Name: "dev", Description: "Development bundle", Kind: commands.KindBool},
		},
		Action: func(ctx context.Context, inv *commands.Invocation) error {
			return runBundle(ctx, api, opts, parseBundleOptions(inv))
		},
	})
}

func runBundle(ctx context.Context, api *plugins.API, opts Options, in bundleOptions) error {
	if api.Project.Type() != project.TypeComponent {
		return prierrors.UnsupportedProjectType("bundle", string(api.Project.Type()), "only components can be bundled")
	}

	if err := prepareBuild(ctx, api, opts, prepareOptions{skipLint: in.SkipLint}); err != nil {
		return err
	}

	mode := bundler.ModeProduction
	if in.Dev {
		mode = bundler.ModeDevelopment
	}

	_, err := newRunner(api, opts).Run(ctx, bundler.Options{
		Mode:          mode,
		Entry:         map[string]string{"main": libraryEntry(api)},
		OutFileName:   api.Project.Config().BundleFileName,
		LibraryTarget: "umd",
	})
	return err
}
