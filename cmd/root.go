package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/logging"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/plugins/builtin"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/prompt"
	"github.com/conneroisu/pri/internal/shell"
	"github.com/conneroisu/pri/internal/version"
)

var errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

// globalOptions are the flags every command accepts.
type globalOptions struct {
	ConfigFile  string
	Cwd         string
	LogLevel    string
	LogFormat   string
	PluginRoots []string
	Light       bool
}

func addGlobalFlags(fs *pflag.FlagSet, o *globalOptions) {
	fs.StringVar(&o.ConfigFile, "config", "", "config file (default is pri.json, can also use PRI_CONFIG_FILE env var)")
	fs.StringVar(&o.Cwd, "cwd", "", "project root (default is the current directory)")
	fs.StringVarP(&o.LogLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&o.LogFormat, "log-format", "text", "log format (text, json)")
	fs.StringSliceVar(&o.PluginRoots, "plugin-root", nil, "additional directory to search for plugins")
	fs.BoolVar(&o.Light, "light", false, "skip writing ensured project files")
}

// env binds the global flags to PRI_ environment variables. Flags win.
func (o *globalOptions) env(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix("PRI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("config", "PRI_CONFIG_FILE"); err != nil {
		return err
	}
	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	o.ConfigFile = v.GetString("config")
	o.Cwd = v.GetString("cwd")
	o.LogLevel = v.GetString("log-level")
	o.LogFormat = v.GetString("log-format")
	o.PluginRoots = v.GetStringSlice("plugin-root")
	o.Light = v.GetBool("light")
	return nil
}

// app is everything a single invocation needs.
type app struct {
	opts   globalOptions
	logger logging.Logger
	host   *plugins.Host
	loader *plugins.Loader

	stdout   io.Writer
	stderr   io.Writer
	prompter prompt.Prompter
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pri",
		Short: "Scaffold, develop, build and publish front-end projects",
		Long: `Pri scaffolds and builds front-end projects, components, plugins and CLIs.
Every command is contributed by a plugin; built-in plugins come first,
followed by pri-plugin-* dependencies and configured include roots.

Quick Start:
  pri init                 Initialize the current directory
  pri dev                  Start the dev server and dashboard
  pri build                Build for production
  pri publish              Release a component or plugin`,
		Version:       version.GetShortVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Registered so help and usage show them; the values are read during
	// bootstrap.
	var shadow globalOptions
	addGlobalFlags(root.PersistentFlags(), &shadow)

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.AddCommand(newVersionCommand())

	return root
}

// majorCommand is the first positional argument, which names the command
// being run.
func majorCommand(fs *pflag.FlagSet) string {
	if fs.NArg() == 0 {
		return ""
	}
	return fs.Arg(0)
}

// bootstrap reads the global flags, loads the project and its plugins, and
// compiles plugin commands onto root.
func (a *app) bootstrap(ctx context.Context, root *cobra.Command, args []string) error {
	fs := pflag.NewFlagSet("pri", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	addGlobalFlags(fs, &a.opts)
	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return err
	}
	if err := a.opts.env(fs); err != nil {
		return prierrors.WrapConfig(err, prierrors.ErrCodeConfigInvalid, "failed to bind flags")
	}

	level, err := logging.ParseLevel(a.opts.LogLevel)
	if err != nil {
		return prierrors.NewConfigError(prierrors.ErrCodeConfigInvalid, err.Error())
	}
	if a.opts.LogFormat != "text" && a.opts.LogFormat != "json" {
		return prierrors.NewConfigError(prierrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown log format %q (expected text or json)", a.opts.LogFormat))
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = a.opts.LogFormat
	cfg.Output = a.stderr
	a.logger = logging.NewLogger(cfg)

	dir := a.opts.Cwd
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return prierrors.FileOperationError("getwd", ".", err)
		}
	}

	p, err := project.New(project.Options{
		Root:         dir,
		ConfigFile:   a.opts.ConfigFile,
		MajorCommand: majorCommand(fs),
		Light:        a.opts.Light,
	})
	if err != nil {
		return err
	}

	a.host = plugins.NewHost(p, shell.New(a.logger), a.logger)
	a.host.Stdout = a.stdout
	a.host.Stderr = a.stderr

	a.loader = plugins.NewLoader(a.host)
	if err := a.loader.SetBuiltinPlugins(builtin.Plugins(builtin.Options{
		Version:  version.GetVersion(),
		Prompter: a.prompter,
	})); err != nil {
		return err
	}
	a.loader.AddIncludeRoots(a.opts.PluginRoots...)

	if err := a.loader.Load(ctx); err != nil {
		return err
	}

	a.logger.Debug(ctx, "plugins loaded",
		"count", len(a.loader.Plugins()),
		"commands", len(a.host.Commands.Paths()),
		"major", p.MajorCommand())

	return a.host.Commands.Compile(root)
}

// Execute runs pri with args against the process streams.
func Execute(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr, nil)
}

// run is the single exit point: the final error is printed here and nowhere
// else.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, prompter prompt.Prompter) error {
	a := &app{stdout: stdout, stderr: stderr, prompter: prompter}
	root := newRootCommand(a)

	err := a.bootstrap(ctx, root, args)
	if err == nil {
		root.SetArgs(args)
		err = root.ExecuteContext(ctx)
	}
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error:"), prierrors.FormatError(err))
	}
	return err
}

// ExitCode picks the process exit code for err. A failing child process
// passes its own status through.
func ExitCode(err error) int {
	var shErr *shell.ExitError
	if errors.As(err, &shErr) && shErr.Code > 0 {
		return shErr.Code
	}
	return prierrors.ExitCode(err)
}
