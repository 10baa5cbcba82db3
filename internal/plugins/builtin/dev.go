package builtin

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/pri/internal/bundler"
	"github.com/conneroisu/pri/internal/commands"
	"github.com/conneroisu/pri/internal/config"
	"github.com/conneroisu/pri/internal/dashboard"
	"github.com/conneroisu/pri/internal/entry"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/lint"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/scaffold"
	"github.com/conneroisu/pri/internal/watcher"
)

// DevOutDir receives the development bundle, served by the dashboard under
// /static/.
const DevOutDir = ".temp/static"

const devDebounce = 100 * time.Millisecond

type devOptions struct {
	// DebugDashboard runs the dashboard and watcher without the bundler.
	DebugDashboard bool
}

func parseDevOptions(inv *commands.Invocation) devOptions {
	return devOptions{DebugDashboard: inv.Bool("debugDashboard")}
}

func registerDev(_ context.Context, api *plugins.API, opts Options) error {
	if err := registerSocketListeners(api); err != nil {
		return err
	}

	return api.RegisterCommand(commands.Registration{
		Path:        []string{"dev"},
		Description: "Develop your project",
		Options: []commands.Option{
			{Name: "debugDashboard", Alias: "d", Description: "Run the dashboard without the bundler", Kind: commands.KindBool},
		},
		Action: func(ctx context.Context, inv *commands.Invocation) error {
			return runDev(ctx, api, opts, parseDevOptions(inv))
		},
	})
}

type addPageRequest struct {
	Path string `json:"path"`
}

// registerSocketListeners wires the dashboard's create actions to the
// scaffold generator.
func registerSocketListeners(api *plugins.API) error {
	if api.SocketListeners == nil {
		return nil
	}

	gen := func() *scaffold.Generator {
		return scaffold.NewGenerator(api.Project.Fs(), api.Project.Root())
	}

	listeners := map[string]dashboard.Handler{
		"addPage": func(ctx context.Context, data json.RawMessage) (interface{}, error) {
			var req addPageRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, "addPage expects {\"path\": string}")
			}
			return gen().AddPage(ctx, req.Path)
		},
		"createLayout": func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return gen().CreateLayout(ctx)
		},
		"create404": func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return gen().Create404(ctx)
		},
		"createConfig": func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return gen().CreateConfig(ctx)
		},
	}

	for _, name := range []string{"addPage", "createLayout", "create404", "createConfig"} {
		if err := api.SocketListeners.Add(name, listeners[name]); err != nil {
			return err
		}
	}
	return nil
}

func runDev(ctx context.Context, api *plugins.API, opts Options, in devOptions) error {
	switch api.Project.Type() {
	case project.TypeProject:
		return devProject(ctx, api, opts, in)
	case project.TypeComponent:
		return devLibrary(ctx, api, opts, true)
	case project.TypePlugin:
		return devLibrary(ctx, api, opts, false)
	case project.TypeCLI:
		return prierrors.NewValidationError(prierrors.ErrCodeProjectType, "cli not support 'npm start' yet, try 'tsc -w'!")
	default:
		return prierrors.UnsupportedProjectType("dev", string(api.Project.Type()), "run 'pri init' first")
	}
}

// devSession is one running dev server for a project.
type devSession struct {
	api  *plugins.API
	dash *dashboard.Server

	mu       sync.RWMutex
	analysis *entry.Analysis
}

func devProject(ctx context.Context, api *plugins.API, opts Options, in devOptions) error {
	api.Project.SetDevelopment(true)

	if err := ensureProjectFiles(ctx, api); err != nil {
		return err
	}
	if err := checkProjectFiles(ctx, api); err != nil {
		return err
	}

	s := &devSession{api: api}
	entryPath, err := s.createEntry(ctx)
	if err != nil {
		return err
	}

	cfg := api.Project.Config()
	s.dash = dashboard.New(dashboard.Options{
		Port:      cfg.DashboardPort,
		Fs:        api.Project.Fs(),
		StaticDir: api.Project.Path(entry.TempDir),
		Title:     cfg.Title,
		Status:    s.status,
		Listeners: api.SocketListeners,
		Logger:    api.Logger,
	})

	var pages []bundler.HTMLPage
	if !in.DebugDashboard {
		title := pageTitle(api)
		tpl, err := bundler.WriteTemplate(api.Project.Fs(), api.Project.Root(), bundler.TemplateArgs{
			Title:               title,
			BaseHref:            cfg.BaseHref,
			DashboardServerPort: cfg.DashboardPort,
		})
		if err != nil {
			return err
		}
		pages = []bundler.HTMLPage{{Title: title, Filename: "index.html", Template: tpl}}
	}

	w, err := watcher.New(watcher.Options{
		Root:     api.Project.Root(),
		Debounce: devDebounce,
		Ignore:   []string{cfg.DistDir},
		Logger:   api.Logger,
	})
	if err != nil {
		return prierrors.FileOperationError("watch", api.Project.Root(), err)
	}
	w.AddHandler(s.handleChange)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.dash.Run(gctx, nil) })
	g.Go(func() error { return w.Run(gctx) })

	if in.DebugDashboard {
		api.Logger.Info(ctx, "Bundler disabled, dashboard only")
	} else {
		runner := newRunner(api, opts)
		g.Go(func() error {
			return runner.Watch(gctx, bundler.Options{
				Mode:      bundler.ModeDevelopment,
				Entry:     map[string]string{"main": entryPath},
				OutDir:    DevOutDir,
				HTMLPages: pages,
			})
		})
	}

	return g.Wait()
}

func (s *devSession) createEntry(ctx context.Context) (string, error) {
	analysis, err := s.api.Entry.Analyse(ctx)
	if err != nil {
		return "", err
	}
	entryPath, err := s.api.Entry.Create(ctx, analysis)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.analysis = analysis
	s.mu.Unlock()

	return entryPath, nil
}

func (s *devSession) status(context.Context) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"analyseInfo":   s.analysis,
		"projectConfig": s.api.Project.Config(),
	}, nil
}

// fresh re-analyses the project, rewrites the entry and pushes the new
// status to the dashboard.
func (s *devSession) fresh(ctx context.Context) error {
	if _, err := s.createEntry(ctx); err != nil {
		return err
	}
	return s.dash.Fresh(ctx)
}

func (s *devSession) handleChange(ctx context.Context, ev watcher.ChangeEvent) error {
	rel := ev.Rel

	if rel == config.FileName {
		if err := s.api.Project.Reload(); err != nil {
			return err
		}
		s.api.Events.Emit(ctx, events.ProjectConfigChanged, s.api.Project.Config())
		return s.fresh(ctx)
	}

	if ev.Type != watcher.EventTypeModified {
		return s.fresh(ctx)
	}

	content, err := afero.ReadFile(s.api.Project.Fs(), ev.Path)
	if err != nil {
		return prierrors.FileOperationError("read", ev.Path, err)
	}
	if err := s.dash.ChangeFile(ctx, rel, string(content)); err != nil {
		return err
	}

	if refreshesStatus(rel, sourceRoot(s.api)) {
		return s.fresh(ctx)
	}
	return nil
}

// refreshesStatus reports whether editing rel changes the project status:
// markdown pages and mock definitions do.
func refreshesStatus(rel, src string) bool {
	ext := path.Ext(rel)
	switch {
	case strings.HasPrefix(rel, src+"/") && ext == ".md":
		return true
	case strings.HasPrefix(rel, "mocks/") && (ext == ".ts" || ext == ".js"):
		return true
	}
	return false
}

// devLibrary lints once and rebuilds a component or plugin on change.
func devLibrary(ctx context.Context, api *plugins.API, opts Options, component bool) error {
	if component {
		if err := newLinter(api, opts).Lint(ctx, lint.Options{}); err != nil {
			return err
		}
	}
	if err := cleanDist(ctx, api); err != nil {
		return err
	}

	outFile := api.Project.Config().OutFileName
	if !component {
		outFile = "main.js"
	}

	return newRunner(api, opts).Watch(ctx, bundler.Options{
		Mode:          bundler.ModeDevelopment,
		Entry:         map[string]string{"main": libraryEntry(api)},
		OutFileName:   outFile,
		Target:        "node",
		LibraryTarget: "commonjs2",
		NodeExternals: true,
	})
}
