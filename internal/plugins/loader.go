package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/logging"
)

// dependencyPattern matches package names that follow the plugin naming
// convention: pri-plugin-<name> or @<scope>/pri-plugin-<name>.
var dependencyPattern = regexp.MustCompile(`^(@[a-z0-9][a-z0-9._-]*/)?pri-plugin-[a-z0-9._-]+$`)

// IsPluginPackage reports whether a dependency name follows the plugin
// naming convention.
func IsPluginPackage(name string) bool {
	return dependencyPattern.MatchString(name)
}

// Loader discovers plugins and runs their registration exactly once.
type Loader struct {
	host   *Host
	logger logging.Logger
	fs     afero.Fs

	builtins     []Plugin
	includeRoots []string

	mu     sync.RWMutex
	seen   map[string]bool
	loaded []LoadedPlugin
	done   bool
}

// NewLoader creates a loader writing into host.
func NewLoader(host *Host) *Loader {
	if host.Logger == nil {
		host.Logger = logging.NewNopLogger()
	}
	if host.WhiteFiles == nil {
		host.WhiteFiles = NewWhiteFiles()
	}

	return &Loader{
		host:   host,
		logger: host.Logger.WithComponent("plugins"),
		fs:     host.Project.Fs(),
		seen:   make(map[string]bool),
	}
}

// SetBuiltinPlugins sets the built-in plugins in load order. Built-ins are
// injected by the caller to avoid import cycles.
func (l *Loader) SetBuiltinPlugins(plugins []Plugin) error {
	plugins = append([]Plugin(nil), plugins...)
	names := make(map[string]bool, len(plugins))
	for i, p := range plugins {
		if p.Name == "" || p.Register == nil {
			return fmt.Errorf("builtin plugin %d is missing a name or register function", i)
		}
		if names[p.Name] {
			return fmt.Errorf("builtin plugin %s registered twice", p.Name)
		}
		names[p.Name] = true

		if p.ID == "" {
			plugins[i].ID = "builtin:" + p.Name
		}
		plugins[i].Source = SourceBuiltin
	}

	l.mu.Lock()
	l.builtins = plugins
	l.mu.Unlock()

	return nil
}

// AddIncludeRoots adds directories searched for plugins in addition to the
// configured plugins.includeRoots.
func (l *Loader) AddIncludeRoots(roots ...string) {
	l.mu.Lock()
	l.includeRoots = append(l.includeRoots, roots...)
	l.mu.Unlock()
}

// Load registers built-ins in their fixed order, then discovered plugins by
// priority. It runs once; later calls are no-ops. Any failure aborts loading.
func (l *Loader) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.done {
		l.mu.Unlock()
		return nil
	}
	l.done = true
	builtins := append([]Plugin(nil), l.builtins...)
	l.mu.Unlock()

	perf := logging.StartOperation(l.logger, "load plugins")

	for _, p := range builtins {
		if err := l.load(ctx, p); err != nil {
			perf.EndWithError(ctx, err)
			return err
		}
	}

	external, err := l.Discover(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return err
	}

	sort.SliceStable(external, func(i, j int) bool {
		return external[i].Priority < external[j].Priority
	})

	for _, p := range external {
		if err := l.load(ctx, p); err != nil {
			perf.EndWithError(ctx, err)
			return err
		}
	}

	perf.End(ctx)
	return nil
}

// Discover finds external plugins: dependencies following the naming
// convention first, then include roots. Duplicates by identity are kept;
// Load skips them.
func (l *Loader) Discover(ctx context.Context) ([]Plugin, error) {
	var found []Plugin

	deps, err := l.discoverDependencies(ctx)
	if err != nil {
		return nil, err
	}
	found = append(found, deps...)

	cfg := l.host.Project.Config()
	l.mu.RLock()
	roots := append(append([]string(nil), cfg.Plugins.IncludeRoots...), l.includeRoots...)
	l.mu.RUnlock()

	for _, root := range roots {
		if !filepath.IsAbs(root) {
			root = l.host.Project.Path(root)
		}
		plugins, err := l.discoverPluginsInPath(ctx, root)
		if err != nil {
			return nil, err
		}
		found = append(found, plugins...)
	}

	return found, nil
}

// discoverDependencies reads package.json. Names are visited in sorted order
// because the dependency maps carry no order.
func (l *Loader) discoverDependencies(ctx context.Context) ([]Plugin, error) {
	pkg := l.host.Project.PackageJSON()
	if pkg == nil {
		return nil, nil
	}

	names := pkg.AllDependencies()
	sort.Strings(names)

	var plugins []Plugin
	for _, name := range names {
		if !IsPluginPackage(name) {
			continue
		}

		dir := l.host.Project.Path("node_modules", filepath.FromSlash(name))
		if ok, _ := afero.DirExists(l.fs, dir); !ok {
			return nil, prierrors.PluginLoad(name, dir,
				fmt.Errorf("dependency %s is not installed, run npm install", name))
		}

		p, err := l.fromDirectory(dir, SourceDependency)
		if err != nil {
			return nil, prierrors.PluginLoad(name, dir, err)
		}

		l.logger.Debug(ctx, "Found dependency plugin", "plugin", p.Name, "path", dir)
		plugins = append(plugins, p)
	}

	return plugins, nil
}

// discoverPluginsInPath treats root as a plugin when it carries a manifest,
// otherwise every immediate subdirectory with a manifest is a plugin.
func (l *Loader) discoverPluginsInPath(ctx context.Context, root string) ([]Plugin, error) {
	if ok, _ := afero.DirExists(l.fs, root); !ok {
		return nil, prierrors.PluginLoad(root, root, fmt.Errorf("plugin root %s does not exist", root))
	}

	if l.hasManifest(root) {
		p, err := l.fromDirectory(root, SourceInclude)
		if err != nil {
			return nil, prierrors.PluginLoad(filepath.Base(root), root, err)
		}
		return []Plugin{p}, nil
	}

	entries, err := afero.ReadDir(l.fs, root)
	if err != nil {
		return nil, prierrors.FileOperationError("read", root, err)
	}

	var plugins []Plugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		if !l.hasManifest(dir) {
			continue
		}

		p, err := l.fromDirectory(dir, SourceInclude)
		if err != nil {
			return nil, prierrors.PluginLoad(entry.Name(), dir, err)
		}

		l.logger.Debug(ctx, "Found plugin in include root", "plugin", p.Name, "path", dir)
		plugins = append(plugins, p)
	}

	return plugins, nil
}

func (l *Loader) hasManifest(dir string) bool {
	ok, _ := afero.Exists(l.fs, filepath.Join(dir, ManifestFile))
	return ok
}

func (l *Loader) fromDirectory(dir, source string) (Plugin, error) {
	if !l.hasManifest(dir) {
		return Plugin{}, prierrors.NewPluginError(prierrors.ErrCodePluginUnsupported,
			fmt.Sprintf("%s has no %s", dir, ManifestFile), nil)
	}

	m, err := ReadManifest(l.fs, dir)
	if err != nil {
		return Plugin{}, err
	}

	return m.Plugin(l.identity(dir), dir, source), nil
}

// identity resolves symlinks so two paths to one directory share an
// identity. Only the OS filesystem has links to resolve.
func (l *Loader) identity(dir string) string {
	if _, ok := l.fs.(*afero.OsFs); ok {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return resolved
		}
	}
	return filepath.Clean(dir)
}

func (l *Loader) load(ctx context.Context, p Plugin) error {
	l.mu.Lock()
	if l.seen[p.ID] {
		l.mu.Unlock()
		l.logger.Debug(ctx, "Plugin already loaded, skipping", "plugin", p.Name, "path", p.Path)
		return nil
	}
	l.seen[p.ID] = true
	l.mu.Unlock()

	if l.host.Project.Config().Plugins.IsDisabled(p.Name) {
		l.record(p, PluginStateDisabled)
		l.logger.Info(ctx, "Plugin disabled by configuration", "plugin", p.Name)
		return nil
	}

	if err := l.register(ctx, p); err != nil {
		l.record(p, PluginStateError)
		return prierrors.PluginLoad(p.Name, p.Path, err)
	}

	l.record(p, PluginStateLoaded)
	l.logger.Debug(ctx, "Plugin loaded successfully", "plugin", p.Name, "source", p.Source)

	return nil
}

func (l *Loader) register(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = prierrors.NewInternalError(prierrors.ErrCodeInternalError,
				fmt.Sprintf("plugin panicked: %v", r), nil)
		}
	}()

	return p.Register(ctx, newAPI(l.host, l, p.Name))
}

func (l *Loader) record(p Plugin, state PluginState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loaded = append(l.loaded, LoadedPlugin{
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		Source:      p.Source,
		Path:        p.Path,
		Priority:    p.Priority,
		State:       state,
		LoadedAt:    time.Now(),
	})
}

// Plugins returns every plugin the loader processed, in load order.
func (l *Loader) Plugins() []LoadedPlugin {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LoadedPlugin, len(l.loaded))
	copy(out, l.loaded)
	return out
}

// State returns the state of the named plugin.
func (l *Loader) State(name string) (PluginState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, p := range l.loaded {
		if p.Name == name {
			return p.State, true
		}
	}
	return "", false
}
