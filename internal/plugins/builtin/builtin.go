// Package builtin holds the plugins compiled into pri. They register the
// standard commands (init, dev, build, bundle, publish, test, packages push)
// and the project file and service worker behavior, through the same API
// external plugins use.
package builtin

import (
	"context"

	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/prompt"
)

// Built-in plugin names, in load order.
const (
	EnsureProjectFiles = "ensure-project-files"
	CommandInit        = "command-init"
	CommandDev         = "command-dev"
	CommandBuild       = "command-build"
	CommandBundle      = "command-bundle"
	CommandPublish     = "command-publish"
	CommandTest        = "command-test"
	PackagesPush       = "packages-push"
	ServiceWorker      = "service-worker"
	CommandPlugins     = "command-plugins"
)

// Options are the process-wide inputs of the built-in plugins.
type Options struct {
	// Version is the running pri version, pinned into package.json.
	Version string
	// Prompter asks for values not given on the command line.
	Prompter prompt.Prompter
	// BundlerCommand overrides the bundler CLI invocation.
	BundlerCommand string
	// LintCommand overrides the linter invocation.
	LintCommand string
	// TestCommand overrides the test runner invocation.
	TestCommand string
}

// Plugins returns the built-in plugins in their fixed load order. Project
// files are ensured before anything builds, and dev registers the dashboard
// listeners before external plugins add their own.
func Plugins(opts Options) []plugins.Plugin {
	if opts.Prompter == nil {
		opts.Prompter = prompt.NewTerminal()
	}

	entries := []struct {
		name        string
		description string
		register    func(ctx context.Context, api *plugins.API, opts Options) error
	}{
		{EnsureProjectFiles, "Keeps the project configuration files in shape", registerEnsureProjectFiles},
		{CommandInit, "Initializes a project", registerInit},
		{CommandDev, "Development server, watcher and dashboard", registerDev},
		{CommandBuild, "Production build", registerBuild},
		{CommandBundle, "UMD bundle for components", registerBundle},
		{CommandPublish, "Versioning and npm publishing", registerPublish},
		{CommandTest, "Runs the test suite", registerTest},
		{PackagesPush, "Commits and pushes monorepo packages", registerPackagesPush},
		{ServiceWorker, "Service worker registration and script", registerServiceWorker},
		{CommandPlugins, "Lists loaded plugins", registerPluginsList},
	}

	out := make([]plugins.Plugin, 0, len(entries))
	for _, e := range entries {
		register := e.register
		out = append(out, plugins.Plugin{
			Name:        e.name,
			Description: e.description,
			Version:     opts.Version,
			Register: func(ctx context.Context, api *plugins.API) error {
				return register(ctx, api, opts)
			},
		})
	}
	return out
}
