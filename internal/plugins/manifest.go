package plugins

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pri/internal/commands"
	"github.com/conneroisu/pri/internal/ensure"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/shell"
	"github.com/conneroisu/pri/internal/validation"
	"github.com/conneroisu/pri/internal/version"
)

// ManifestFile is the file that marks a directory as a pri plugin.
const ManifestFile = "pri-plugin.yaml"

//go:embed schema/pri-plugin.schema.json
var manifestSchemaBytes []byte

var manifestSchema = validation.MustCompileSchema("pri-plugin.schema.json", manifestSchemaBytes)

// Manifest declares everything an external plugin contributes.
type Manifest struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Version     string              `yaml:"version"`
	Priority    int                 `yaml:"priority"`
	Requires    string              `yaml:"requires"`
	Commands    []ManifestCommand   `yaml:"commands"`
	Expand      []ManifestExpansion `yaml:"expand"`
	Pipes       []ManifestPipe      `yaml:"pipes"`
	Files       []ManifestEnsure    `yaml:"files"`
	Events      []ManifestEvent     `yaml:"events"`
	WhiteFiles  []string            `yaml:"whiteFiles"`
}

// ManifestCommand registers a command backed by shell scripts. Name is the
// space-separated command path.
type ManifestCommand struct {
	Name        string           `yaml:"name"`
	Aliases     []string         `yaml:"aliases"`
	Description string           `yaml:"description"`
	Args        []string         `yaml:"args"`
	Options     []ManifestOption `yaml:"options"`
	Run         string           `yaml:"run"`
	Before      string           `yaml:"before"`
	After       string           `yaml:"after"`
}

type ManifestOption struct {
	Name        string `yaml:"name"`
	Alias       string `yaml:"alias"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// ManifestExpansion adds script hooks to an existing command.
type ManifestExpansion struct {
	Name   string `yaml:"name"`
	Before string `yaml:"before"`
	After  string `yaml:"after"`
}

// ManifestPipe is a shell filter: the prior value arrives on stdin and stdout
// becomes the next value.
type ManifestPipe struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

// ManifestEnsure ensures one project file. Exactly one of Content, Merge or
// Lines is set.
type ManifestEnsure struct {
	Path     string                 `yaml:"path"`
	Content  *string                `yaml:"content"`
	IfAbsent bool                   `yaml:"ifAbsent"`
	Merge    map[string]interface{} `yaml:"merge"`
	Lines    []string               `yaml:"lines"`
}

type ManifestEvent struct {
	Name string `yaml:"name"`
	Once bool   `yaml:"once"`
	Run  string `yaml:"run"`
}

// ReadManifest loads and validates the manifest in dir.
func ReadManifest(fs afero.Fs, dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, prierrors.FileOperationError("read", path, err)
	}

	if err := manifestSchema.ValidateYAML(raw); err != nil {
		return nil, prierrors.Wrap(err, prierrors.ErrorTypePlugin, prierrors.ErrCodePluginManifest,
			"invalid plugin manifest").WithFile(path)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, prierrors.Wrap(err, prierrors.ErrorTypePlugin, prierrors.ErrCodePluginManifest,
			"invalid plugin manifest").WithFile(path)
	}

	if err := m.validate(); err != nil {
		return nil, prierrors.Wrap(err, prierrors.ErrorTypePlugin, prierrors.ErrCodePluginManifest,
			"invalid plugin manifest").WithFile(path)
	}

	return &m, nil
}

func (m *Manifest) validate() error {
	ok, err := version.Satisfies(m.Requires)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("plugin %s requires pri %s, running %s", m.Name, m.Requires, version.GetVersion())
	}

	for _, cmd := range m.Commands {
		// Hook-only contributions belong under expand.
		if strings.TrimSpace(cmd.Run) == "" {
			return fmt.Errorf("command %q declares no run script", cmd.Name)
		}
	}

	for _, f := range m.Files {
		if err := validation.ValidateRelativePath(f.Path); err != nil {
			return err
		}

		kinds := 0
		if f.Content != nil {
			kinds++
		}
		if f.Merge != nil {
			kinds++
		}
		if len(f.Lines) > 0 {
			kinds++
		}
		if kinds != 1 {
			return fmt.Errorf("file %q must set exactly one of content, merge or lines", f.Path)
		}
	}

	return nil
}

// Plugin turns the manifest into a loadable plugin rooted at dir.
func (m *Manifest) Plugin(id, dir, source string) Plugin {
	return Plugin{
		ID:          id,
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		Priority:    m.Priority,
		Source:      source,
		Path:        dir,
		Register: func(ctx context.Context, api *API) error {
			return m.register(ctx, api, dir)
		},
	}
}

func (m *Manifest) register(_ context.Context, api *API, dir string) error {
	for _, cmd := range m.Commands {
		reg := commands.Registration{
			Path:         strings.Fields(cmd.Name),
			Aliases:      cmd.Aliases,
			Description:  cmd.Description,
			Args:         cmd.Args,
			Options:      manifestOptions(cmd.Options),
			Action:       m.hook(api, dir, cmd.Run),
			BeforeAction: m.hook(api, dir, cmd.Before),
			AfterAction:  m.hook(api, dir, cmd.After),
		}
		if err := api.RegisterCommand(reg); err != nil {
			return err
		}
	}

	for _, exp := range m.Expand {
		err := api.ExpandCommand(commands.Expansion{
			Path:         strings.Fields(exp.Name),
			BeforeAction: m.hook(api, dir, exp.Before),
			AfterAction:  m.hook(api, dir, exp.After),
		})
		if err != nil {
			return err
		}
	}

	for _, p := range m.Pipes {
		run := p.Run
		api.Pipes.Register(p.Name, func(ctx context.Context, prior string) (string, error) {
			return api.Shell.Exec(ctx, run, shell.Options{
				Dir:   api.Project.Root(),
				Env:   scriptEnv(api, dir, nil),
				Stdin: strings.NewReader(prior),
				Raw:   true,
			})
		})
	}

	for _, f := range m.Files {
		api.Files.Add(f.Path, ensureTransform(f))
	}

	for _, ev := range m.Events {
		name, run := ev.Name, ev.Run
		handler := func(ctx context.Context, _ ...interface{}) {
			env := append(scriptEnv(api, dir, nil), "PRI_EVENT="+name)
			_, err := api.Shell.Exec(ctx, run, shell.Options{
				Dir:    api.Project.Root(),
				Env:    env,
				Stdout: api.Stdout,
				Stderr: api.Stderr,
			})
			if err != nil {
				api.Logger.Error(ctx, err, "Event script failed", "event", name)
			}
		}
		if ev.Once {
			api.Events.Once(name, handler)
		} else {
			api.Events.On(name, handler)
		}
	}

	if len(m.WhiteFiles) > 0 {
		api.WhiteFiles.AddPattern(m.WhiteFiles...)
	}

	return nil
}

func (m *Manifest) hook(api *API, dir, run string) commands.Hook {
	if run == "" {
		return nil
	}

	return func(ctx context.Context, inv *commands.Invocation) error {
		_, err := api.Shell.Exec(ctx, run, shell.Options{
			Dir:    api.Project.Root(),
			Env:    scriptEnv(api, dir, inv),
			Args:   inv.Args,
			Stdout: api.Stdout,
			Stderr: api.Stderr,
		})
		return err
	}
}

func manifestOptions(opts []ManifestOption) []commands.Option {
	out := make([]commands.Option, 0, len(opts))
	for _, o := range opts {
		kind := commands.KindString
		if o.Type == "bool" {
			kind = commands.KindBool
		}
		out = append(out, commands.Option{
			Name:        o.Name,
			Alias:       o.Alias,
			Description: o.Description,
			Kind:        kind,
			Required:    o.Required,
			Default:     o.Default,
		})
	}
	return out
}

func ensureTransform(f ManifestEnsure) ensure.Transform {
	switch {
	case f.Content != nil && f.IfAbsent:
		return ensure.IfAbsent(*f.Content)
	case f.Content != nil:
		return ensure.Static(*f.Content)
	case f.Merge != nil:
		return ensure.MergeJSON(f.Merge)
	default:
		return ensure.UnionLines(f.Lines...)
	}
}

// scriptEnv exposes the plugin directory, the project and any option values
// to a script.
func scriptEnv(api *API, dir string, inv *commands.Invocation) []string {
	env := []string{
		"PRI_PLUGIN_DIR=" + dir,
		"PRI_PROJECT_ROOT=" + api.Project.Root(),
		"PRI_PROJECT_TYPE=" + string(api.Project.Type()),
		fmt.Sprintf("PRI_DEV=%t", api.Project.IsDevelopment()),
	}
	if inv == nil {
		return env
	}

	env = append(env, "PRI_COMMAND="+strings.Join(inv.Path, " "))

	values := inv.Values()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env = append(env, "PRI_OPT_"+key+"="+values[name])
	}

	return env
}
