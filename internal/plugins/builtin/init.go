package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/conneroisu/pri/internal/commands"
	"github.com/conneroisu/pri/internal/plugins"
	"github.com/conneroisu/pri/internal/project"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type initOptions struct {
	Type string
}

func parseInitOptions(inv *commands.Invocation) initOptions {
	return initOptions{Type: strings.TrimSpace(inv.String("type"))}
}

// hints are the npm scripts worth knowing after init, per project type.
var hints = map[project.Type][][2]string{
	project.TypeProject: {
		{"npm start", "Start the dev server"},
		{"npm run build", "Build for production"},
		{"npm test", "Run the tests"},
	},
	project.TypeComponent: {
		{"npm start", "Watch and rebuild the component"},
		{"npm run docs", "Preview the docs"},
		{"npm run publish", "Publish to npm"},
	},
	project.TypePlugin: {
		{"npm start", "Watch and rebuild the plugin"},
		{"npm run publish", "Publish to npm"},
	},
	project.TypeCLI: {
		{"npm run build", "Build the cli"},
		{"npm run publish", "Publish to npm"},
	},
}

func registerInit(_ context.Context, api *plugins.API, opts Options) error {
	return api.RegisterCommand(commands.Registration{
		Path:        []string{"init"},
		Description: "Init current project",
		Options: []commands.Option{
			{Name: "type", Description: "Project type: project, component, plugin or cli", Kind: commands.KindString},
		},
		Action: func(ctx context.Context, inv *commands.Invocation) error {
			return runInit(ctx, api, opts, parseInitOptions(inv))
		},
	})
}

func runInit(ctx context.Context, api *plugins.API, opts Options, in initOptions) error {
	typ := api.Project.Type()

	if typ == project.TypeUnknown {
		name := in.Type
		if name == "" {
			choices := make([]string, 0, len(project.Types))
			for _, t := range project.Types {
				choices = append(choices, string(t))
			}
			picked, err := opts.Prompter.Select(ctx, "Choose project type", choices)
			if err != nil {
				return err
			}
			name = picked
		}

		parsed, err := project.ParseType(name)
		if err != nil {
			return err
		}
		typ = parsed
		api.Project.SetType(typ)
	} else if in.Type != "" && in.Type != string(typ) {
		api.Logger.Warn(ctx, nil, "Project type already set, ignoring --type", "type", typ, "requested", in.Type)
	}

	if err := ensureProjectFiles(ctx, api); err != nil {
		return err
	}
	if err := checkProjectFiles(ctx, api); err != nil {
		return err
	}

	api.Logger.Info(ctx, "Project initialized", "type", typ)
	_, err := fmt.Fprint(api.Stdout, initSummary(typ))
	return err
}

func initSummary(typ project.Type) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Success init your %s.", typ)))
	b.WriteString("\n\n")
	for _, h := range hints[typ] {
		b.WriteString("  ")
		b.WriteString(commandStyle.Render(fmt.Sprintf("%-16s", h[0])))
		b.WriteString(dimStyle.Render(h[1]))
		b.WriteString("\n")
	}
	return b.String()
}
