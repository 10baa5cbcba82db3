// Package plugins discovers and loads pri plugins. A plugin is an explicit
// registration function that receives an API handle and populates the shared
// command, event, pipe and file-ensure registries.
package plugins

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/pri/internal/bundler"
	"github.com/conneroisu/pri/internal/commands"
	"github.com/conneroisu/pri/internal/dashboard"
	"github.com/conneroisu/pri/internal/ensure"
	"github.com/conneroisu/pri/internal/entry"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/logging"
	"github.com/conneroisu/pri/internal/pipe"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/shell"
)

// Plugin sources.
const (
	SourceBuiltin    = "builtin"
	SourceDependency = "dependency"
	SourceInclude    = "include"
)

// Plugin is one loadable unit. Register is invoked exactly once per process.
type Plugin struct {
	// ID is the plugin identity. External plugins use their resolved
	// directory; built-ins use "builtin:<name>".
	ID          string
	Name        string
	Description string
	Version     string
	// Priority orders external plugins; lower loads first.
	Priority int
	Source   string
	Path     string
	Register func(ctx context.Context, api *API) error
}

// PluginState represents the current state of a plugin
type PluginState string

const (
	PluginStateDiscovered PluginState = "discovered"
	PluginStateLoaded     PluginState = "loaded"
	PluginStateDisabled   PluginState = "disabled"
	PluginStateError      PluginState = "error"
)

// LoadedPlugin records a plugin the loader has seen, in load order.
type LoadedPlugin struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Version     string      `json:"version,omitempty"`
	Source      string      `json:"source"`
	Path        string      `json:"path,omitempty"`
	Priority    int         `json:"priority"`
	State       PluginState `json:"state"`
	LoadedAt    time.Time   `json:"loadedAt"`
}

// Host holds the shared registries every plugin writes into.
type Host struct {
	Commands        *commands.Registry
	Events          *events.Bus
	Pipes           *pipe.Registry
	Files           *ensure.Queue
	Project         *project.Context
	Logger          logging.Logger
	Shell           shell.Executor
	BundlerConfig   *pipe.Chain[*bundler.Config]
	Entry           *entry.Generator
	SocketListeners *dashboard.Listeners
	WhiteFiles      *WhiteFiles
	// Stdout and Stderr receive command output. They default to the
	// process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewHost creates a host with empty registries for project p.
func NewHost(p *project.Context, sh shell.Executor, logger logging.Logger) *Host {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	bus := events.NewBus(logger)
	pipes := pipe.NewRegistry()

	return &Host{
		Commands:        commands.NewRegistry(),
		Events:          bus,
		Pipes:           pipes,
		Files:           ensure.NewQueue(p.Fs(), p.Root(), logger),
		Project:         p,
		Logger:          logger,
		Shell:           sh,
		BundlerConfig:   &pipe.Chain[*bundler.Config]{},
		Entry:           entry.NewGenerator(p, bus, pipes, logger),
		SocketListeners: dashboard.NewListeners(),
		WhiteFiles:      NewWhiteFiles(),
	}
}

// API is the handle passed to a plugin's Register function. Commands
// registered through it are attributed to the plugin.
type API struct {
	Events          *events.Bus
	Pipes           *pipe.Registry
	Files           *ensure.Queue
	Project         *project.Context
	Logger          logging.Logger
	Shell           shell.Executor
	BundlerConfig   *pipe.Chain[*bundler.Config]
	Entry           *entry.Generator
	SocketListeners *dashboard.Listeners
	WhiteFiles      *WhiteFiles
	Stdout          io.Writer
	Stderr          io.Writer

	plugin   string
	commands *commands.Registry
	loader   *Loader
}

func newAPI(host *Host, loader *Loader, name string) *API {
	stdout, stderr := host.Stdout, host.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &API{
		Events:          host.Events,
		Pipes:           host.Pipes,
		Files:           host.Files,
		Project:         host.Project,
		Logger:          host.Logger.With("plugin", name),
		Shell:           host.Shell,
		BundlerConfig:   host.BundlerConfig,
		Entry:           host.Entry,
		SocketListeners: host.SocketListeners,
		WhiteFiles:      host.WhiteFiles,
		Stdout:          stdout,
		Stderr:          stderr,
		plugin:          name,
		commands:        host.Commands,
		loader:          loader,
	}
}

// PluginName returns the name of the plugin holding this handle.
func (a *API) PluginName() string {
	return a.plugin
}

// RegisterCommand declares a command owned by this plugin.
func (a *API) RegisterCommand(reg commands.Registration) error {
	reg.Owner = a.plugin
	return a.commands.Register(reg)
}

// ExpandCommand adds hooks to a command another plugin registered.
func (a *API) ExpandCommand(exp commands.Expansion) error {
	exp.Owner = a.plugin
	return a.commands.Expand(exp)
}

// Commands exposes the command tree for read-only inspection.
func (a *API) Commands() *commands.Registry {
	return a.commands
}

// LoadedPlugins lists the plugins loaded so far, in load order.
func (a *API) LoadedPlugins() []LoadedPlugin {
	if a.loader == nil {
		return nil
	}
	return a.loader.Plugins()
}

// WhiteFile reports whether a project-relative path is allowed at the
// project root by the project file check.
type WhiteFile func(relPath string) bool

// WhiteFiles collects the rules plugins add for the project file check.
type WhiteFiles struct {
	mu    sync.RWMutex
	rules []WhiteFile
}

// NewWhiteFiles creates an empty rule set.
func NewWhiteFiles() *WhiteFiles {
	return &WhiteFiles{}
}

// Add appends a rule.
func (w *WhiteFiles) Add(rule WhiteFile) {
	w.mu.Lock()
	w.rules = append(w.rules, rule)
	w.mu.Unlock()
}

// AddPattern appends a rule matching slash-separated glob patterns. A
// pattern also matches everything below a matching directory.
func (w *WhiteFiles) AddPattern(patterns ...string) {
	for _, pattern := range patterns {
		pattern := path.Clean(filepath.ToSlash(pattern))
		w.Add(func(rel string) bool {
			rel = filepath.ToSlash(rel)
			for p := rel; p != "." && p != "/"; p = path.Dir(p) {
				if ok, _ := path.Match(pattern, p); ok {
					return true
				}
			}
			return false
		})
	}
}

// Allowed reports whether any rule accepts rel.
func (w *WhiteFiles) Allowed(rel string) bool {
	w.mu.RLock()
	rules := make([]WhiteFile, len(w.rules))
	copy(rules, w.rules)
	w.mu.RUnlock()

	for _, rule := range rules {
		if rule(rel) {
			return true
		}
	}
	return false
}

// Len returns the number of rules.
func (w *WhiteFiles) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.rules)
}
