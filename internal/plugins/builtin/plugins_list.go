package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/conneroisu/pri/internal/commands"
	"github.com/conneroisu/pri/internal/plugins"
)

var (
	stateStyles = map[plugins.PluginState]lipgloss.Style{
		plugins.PluginStateLoaded:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		plugins.PluginStateDisabled: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		plugins.PluginStateError:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
	nameStyle = lipgloss.NewStyle().Bold(true).Width(28)
)

func registerPluginsList(_ context.Context, api *plugins.API, _ Options) error {
	return api.RegisterCommand(commands.Registration{
		Path:        []string{"plugins", "list"},
		Aliases:     []string{"ls"},
		Description: "List loaded plugins",
		Action: func(context.Context, *commands.Invocation) error {
			_, err := fmt.Fprint(api.Stdout, formatPlugins(api.LoadedPlugins()))
			return err
		},
	})
}

func formatPlugins(loaded []plugins.LoadedPlugin) string {
	var b strings.Builder
	for _, p := range loaded {
		state := string(p.State)
		if style, ok := stateStyles[p.State]; ok {
			state = style.Render(state)
		}

		b.WriteString(nameStyle.Render(p.Name))
		b.WriteString(fmt.Sprintf(" %-10s %-9s", p.Source, state))
		if p.Version != "" {
			b.WriteString(" " + p.Version)
		}
		if p.Path != "" {
			b.WriteString("  " + p.Path)
		}
		b.WriteString("\n")
	}
	return b.String()
}
