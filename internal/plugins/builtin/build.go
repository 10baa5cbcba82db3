package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/pri/internal/bundler"
	"github.com/conneroisu/pri/internal/commands"
	"github.com/conneroisu/pri/internal/entry"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/project"
)

// PipeServiceWorkerAfterProdBuild transforms the service worker copied into
// the dist directory.
const PipeServiceWorkerAfterProdBuild = "serviceWorkerAfterProdBuild"

// AssetsDir is copied into the dist directory by production builds.
const AssetsDir = "assets"

// BuildOptions are the options of the build command. They are passed to
// afterProdBuild subscribers after the bundler stats.
type BuildOptions struct {
	// Cloud tags the build as running on a build server.
	Cloud bool
	// PublicPath overrides the configured public path.
	PublicPath string
}

func parseBuildOptions(inv *commands.Invocation) BuildOptions {
	return BuildOptions{
		Cloud:      inv.Bool("cloud"),
		PublicPath: inv.String("publicPath"),
	}
}

func registerBuild(_ context.Context, api *plugins.API, opts Options) error {
	api.Events.On(events.CreateEntry, func(_ context.Context, args ...interface{}) {
		if api.Project.IsDevelopment() || len(args) < 2 {
			return
		}
		e, ok := args[1].(*entry.Entry)
		if !ok {
			return
		}
		e.PipeEnvironmentBody(func(_ context.Context, body string) (string, error) {
			state, err := json.Marshal(globalState(api))
			if err != nil {
				return "", err
			}
			return body + "\npriStore.globalState = " + string(state), nil
		})
	})

	return api.RegisterCommand(commands.Registration{
		Path:        []string{"build"},
		Description: "Pack project as static files",
		Options: []commands.Option{
			{Name: "cloud", Alias: "c", Description: "Cloud build tag", Kind: commands.KindBool},
			{Name: "publicPath", Alias: "p", Description: "Rewrite publicPath", Kind: commands.KindString},
		},
		Action: func(ctx context.Context, inv *commands.Invocation) error {
			return runBuild(ctx, api, opts, parseBuildOptions(inv))
		},
	})
}

// globalState is the project snapshot embedded into production entries.
func globalState(api *plugins.API) map[string]interface{} {
	return map[string]interface{}{
		"projectRootPath":    api.Project.Root(),
		"projectConfig":      api.Project.Config(),
		"projectPackageJson": api.Project.PackageJSON(),
		"projectType":        api.Project.Type(),
		"majorCommand":       api.Project.MajorCommand(),
		"isDevelopment":      api.Project.IsDevelopment(),
	}
}

func runBuild(ctx context.Context, api *plugins.API, opts Options, in BuildOptions) error {
	switch api.Project.Type() {
	case project.TypeProject:
		return buildProject(ctx, api, opts, in)
	case project.TypeComponent, project.TypePlugin, project.TypeCLI:
		return buildLibrary(ctx, api, opts, in, false)
	default:
		return prierrors.UnsupportedProjectType("build", string(api.Project.Type()), "run 'pri init' first")
	}
}

func buildProject(ctx context.Context, api *plugins.API, opts Options, in BuildOptions) error {
	if err := prepareBuild(ctx, api, opts, prepareOptions{clean: true}); err != nil {
		return err
	}

	analysis, err := api.Entry.Analyse(ctx)
	if err != nil {
		return err
	}
	entryPath, err := api.Entry.Create(ctx, analysis)
	if err != nil {
		return err
	}

	title := pageTitle(api)
	tpl, err := bundler.WriteTemplate(api.Project.Fs(), api.Project.Root(), bundler.TemplateArgs{
		Title:    title,
		BaseHref: api.Project.Config().BaseHref,
	})
	if err != nil {
		return err
	}
	var pages []bundler.HTMLPage
	for _, name := range staticHTMLPaths(analysis) {
		pages = append(pages, bundler.HTMLPage{Title: title, Filename: name, Template: tpl})
	}

	stats, err := newRunner(api, opts).Run(ctx, bundler.Options{
		Mode:       bundler.ModeProduction,
		Entry:      map[string]string{"main": entryPath},
		PublicPath: in.PublicPath,
		HTMLPages:  pages,
	})
	if err != nil {
		return err
	}

	if err := copyServiceWorker(ctx, api); err != nil {
		return err
	}
	if err := copyAssets(ctx, api); err != nil {
		api.Logger.Warn(ctx, err, "Failed to copy assets")
	}

	api.Events.Emit(ctx, events.AfterProdBuild, stats, in)
	return nil
}

// pageTitle is the configured title, or the project directory name.
func pageTitle(api *plugins.API) string {
	if title := api.Project.Config().Title; title != "" {
		return title
	}
	return filepath.Base(api.Project.Root())
}

func buildLibrary(ctx context.Context, api *plugins.API, opts Options, in BuildOptions, skipLint bool) error {
	if err := prepareBuild(ctx, api, opts, prepareOptions{clean: true, skipLint: skipLint}); err != nil {
		return err
	}

	stats, err := newRunner(api, opts).Run(ctx, bundler.Options{
		Mode:          bundler.ModeProduction,
		Entry:         map[string]string{"main": libraryEntry(api)},
		OutFileName:   "index.js",
		Target:        "node",
		LibraryTarget: "commonjs2",
		NodeExternals: true,
	})
	if err != nil {
		return err
	}

	api.Events.Emit(ctx, events.AfterProdBuild, stats, in)
	return nil
}

// staticHTMLPaths lists one HTML file per route so static hosts can serve
// deep links.
func staticHTMLPaths(analysis *entry.Analysis) []string {
	out := []string{"index.html"}
	seen := map[string]bool{"index.html": true}
	for _, page := range analysis.Pages {
		route := strings.Trim(page.Route, "/")
		if route == "" {
			continue
		}
		name := path.Join(route, "index.html")
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// copyServiceWorker moves .temp/static/sw.js into the dist directory through
// the serviceWorkerAfterProdBuild pipe.
func copyServiceWorker(ctx context.Context, api *plugins.API) error {
	fs := api.Project.Fs()
	src := api.Project.Path(filepath.FromSlash(ServiceWorkerFile))

	raw, err := afero.ReadFile(fs, src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return prierrors.FileOperationError("read", src, err)
	}

	content, err := api.Pipes.Get(ctx, PipeServiceWorkerAfterProdBuild, string(raw))
	if err != nil {
		return err
	}

	dst := api.Project.Path(api.Project.Config().DistDir, "sw.js")
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return prierrors.FileOperationError("mkdir", filepath.Dir(dst), err)
	}
	if err := afero.WriteFile(fs, dst, []byte(content), 0o644); err != nil {
		return prierrors.FileOperationError("write", dst, err)
	}
	return nil
}

// copyAssets copies the assets directory into dist unless dist already has
// one.
func copyAssets(ctx context.Context, api *plugins.API) error {
	fs := api.Project.Fs()
	src := api.Project.Path(AssetsDir)
	dst := api.Project.Path(api.Project.Config().DistDir, AssetsDir)

	if ok, _ := afero.DirExists(fs, src); !ok {
		return nil
	}
	if ok, _ := afero.Exists(fs, dst); ok {
		api.Logger.Info(ctx, "assets path exists in distDir, so skip /assets copy.")
		return nil
	}

	return afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0o755)
		}
		raw, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		return afero.WriteFile(fs, target, raw, info.Mode().Perm())
	})
}
