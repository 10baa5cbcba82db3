// Package project holds the per-process project context: where the project
// lives, its merged configuration, its type, and whether pri runs in
// development mode. One Context is created at startup and passed to every
// component that needs it.
package project

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/conneroisu/pri/internal/config"
	prierrors "github.com/conneroisu/pri/internal/errors"
)

// Type selects which scaffolding and build behavior applies.
type Type string

const (
	TypeUnknown   Type = ""
	TypeProject   Type = "project"
	TypeComponent Type = "component"
	TypePlugin    Type = "plugin"
	TypeCLI       Type = "cli"
)

// Types lists the selectable project types in display order.
var Types = []Type{TypeProject, TypeComponent, TypePlugin, TypeCLI}

// ParseType validates a project type name.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return TypeUnknown, prierrors.NewValidationError(prierrors.ErrCodeProjectType,
		fmt.Sprintf("unknown project type %q (expected project, component, plugin or cli)", s))
}

// PackageJSON is the subset of package.json pri reads.
type PackageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Main            string            `json:"main,omitempty"`
	Types           string            `json:"types,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
	Pri             struct {
		Type    string `json:"type,omitempty"`
		Version string `json:"version,omitempty"`
	} `json:"pri"`
}

// AllDependencies returns dependency names from both dependency maps.
func (p *PackageJSON) AllDependencies() []string {
	if p == nil {
		return nil
	}

	names := make([]string, 0, len(p.Dependencies)+len(p.DevDependencies))
	for name := range p.Dependencies {
		names = append(names, name)
	}
	for name := range p.DevDependencies {
		if _, dup := p.Dependencies[name]; !dup {
			names = append(names, name)
		}
	}
	return names
}

// Options configures a new Context.
type Options struct {
	Root string
	// ConfigFile overrides <Root>/pri.json.
	ConfigFile    string
	IsDevelopment bool
	MajorCommand  string
	// Light skips writing ensured project files.
	Light bool
	// Overrides are applied over the file and environment, as CLI flags are.
	Overrides map[string]interface{}
	Fs        afero.Fs
}

// Context is the shared project state. It is read by every component and
// mutated only by Reload and SetConfigValue. Readers must not assume fields
// stay the same across blocking calls.
type Context struct {
	fs         afero.Fs
	root       string
	configFile string

	mu            sync.RWMutex
	cfg           config.Config
	pkg           *PackageJSON
	typ           Type
	isDevelopment bool
	majorCommand  string
	light         bool
	overrides     map[string]interface{}
}

// New loads the project at opts.Root.
func New(opts Options) (*Context, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, prierrors.FileOperationError("resolve", opts.Root, err)
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = filepath.Join(root, config.FileName)
	} else if !filepath.IsAbs(configFile) {
		configFile = filepath.Join(root, configFile)
	}

	overrides := make(map[string]interface{}, len(opts.Overrides))
	for k, v := range opts.Overrides {
		overrides[k] = v
	}

	c := &Context{
		fs:            opts.Fs,
		root:          root,
		configFile:    configFile,
		isDevelopment: opts.IsDevelopment,
		majorCommand:  opts.MajorCommand,
		light:         opts.Light,
		overrides:     overrides,
	}

	if err := c.Reload(); err != nil {
		return nil, err
	}

	return c, nil
}

// Reload re-reads pri.json and package.json in place. On error the previous
// state is kept.
func (c *Context) Reload() error {
	c.mu.RLock()
	overrides := make(map[string]interface{}, len(c.overrides))
	for k, v := range c.overrides {
		overrides[k] = v
	}
	c.mu.RUnlock()

	v := config.NewViper(c.fs)
	if err := config.ReadFile(c.fs, v, c.configFile); err != nil {
		return err
	}
	for k, val := range overrides {
		v.Set(k, val)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	pkg, err := c.readPackageJSON()
	if err != nil {
		return err
	}

	typ := TypeUnknown
	if pkg != nil && pkg.Pri.Type != "" {
		if typ, err = ParseType(pkg.Pri.Type); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.cfg = *cfg
	c.pkg = pkg
	c.typ = typ
	c.mu.Unlock()

	return nil
}

func (c *Context) readPackageJSON() (*PackageJSON, error) {
	path := filepath.Join(c.root, "package.json")

	raw, err := afero.ReadFile(c.fs, path)
	if err != nil {
		if exists, _ := afero.Exists(c.fs, path); !exists {
			return nil, nil
		}
		return nil, prierrors.FileOperationError("read", path, err)
	}

	var pkg PackageJSON
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, prierrors.WrapConfig(err, prierrors.ErrCodeConfigInvalid, "invalid package.json").
			WithFile(path)
	}

	return &pkg, nil
}

// Root returns the absolute project root.
func (c *Context) Root() string {
	return c.root
}

// Path joins elem onto the project root.
func (c *Context) Path(elem ...string) string {
	return filepath.Join(append([]string{c.root}, elem...)...)
}

// ConfigFile returns the absolute path of the configuration file.
func (c *Context) ConfigFile() string {
	return c.configFile
}

// Fs returns the filesystem the project is read from.
func (c *Context) Fs() afero.Fs {
	return c.fs
}

// Config returns a copy of the merged configuration.
func (c *Context) Config() config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cfg
}

// SetConfigValue overrides a configuration key for the rest of the process,
// as a command-line flag would.
func (c *Context) SetConfigValue(key string, value interface{}) error {
	c.mu.Lock()
	previous, had := c.overrides[key]
	c.overrides[key] = value
	c.mu.Unlock()

	if err := c.Reload(); err != nil {
		c.mu.Lock()
		if had {
			c.overrides[key] = previous
		} else {
			delete(c.overrides, key)
		}
		c.mu.Unlock()
		return err
	}

	return nil
}

// PackageJSON returns the parsed package.json, or nil when absent.
func (c *Context) PackageJSON() *PackageJSON {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pkg
}

// Type returns the project type declared in package.json.
func (c *Context) Type() Type {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.typ
}

// SetType records the project type in memory. Persisting it to package.json
// goes through the ensure queue.
func (c *Context) SetType(t Type) {
	c.mu.Lock()
	c.typ = t
	c.mu.Unlock()
}

// IsDevelopment reports whether pri runs in development mode.
func (c *Context) IsDevelopment() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.isDevelopment
}

// SetDevelopment switches between development and production mode.
func (c *Context) SetDevelopment(dev bool) {
	c.mu.Lock()
	c.isDevelopment = dev
	c.mu.Unlock()
}

// IsLight reports whether ensured files are left untouched for this run.
func (c *Context) IsLight() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.light
}

// SetLight toggles light mode.
func (c *Context) SetLight(light bool) {
	c.mu.Lock()
	c.light = light
	c.mu.Unlock()
}

// MajorCommand returns the top-level command being run ("dev" for pri dev -d).
func (c *Context) MajorCommand() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.majorCommand
}

// SetMajorCommand records the top-level command.
func (c *Context) SetMajorCommand(name string) {
	c.mu.Lock()
	c.majorCommand = name
	c.mu.Unlock()
}

// Viper exposes a fresh viper instance over the merged configuration for
// plugins that need keys pri does not model.
func (c *Context) Viper() (*viper.Viper, error) {
	v := config.NewViper(c.fs)
	if err := config.ReadFile(c.fs, v, c.configFile); err != nil {
		return nil, err
	}

	c.mu.RLock()
	for k, val := range c.overrides {
		v.Set(k, val)
	}
	c.mu.RUnlock()

	return v, nil
}
