package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Compile attaches the command tree below root. Nodes without an action
// become help-only group commands.
func (r *Registry) Compile(root *cobra.Command) error {
	for _, node := range r.Root() {
		if existing := findSubcommand(root, node.Name); existing != nil {
			return fmt.Errorf("command %q collides with a built-in command", node.Name)
		}
		root.AddCommand(r.compileNode(node))
	}
	return nil
}

func (r *Registry) compileNode(node *Node) *cobra.Command {
	use := node.Name
	for _, arg := range node.Args {
		use += " [" + arg + "]"
	}

	cmd := &cobra.Command{
		Use:     use,
		Short:   node.Description,
		Aliases: node.Aliases,
	}

	bindOptions(cmd.Flags(), node.Options)
	for _, opt := range node.Options {
		if opt.Required {
			_ = cmd.MarkFlagRequired(opt.Name)
		}
	}

	if node.HasAction() {
		cmd.Args = cobra.ArbitraryArgs
		cmd.RunE = func(c *cobra.Command, args []string) error {
			inv, err := invocationFromFlags(node, c.Flags(), args)
			if err != nil {
				return err
			}
			return r.Run(c.Context(), node, inv)
		}
	}

	for _, child := range node.Children() {
		cmd.AddCommand(r.compileNode(child))
	}

	return cmd
}

func findSubcommand(root *cobra.Command, name string) *cobra.Command {
	for _, c := range root.Commands() {
		if c.Name() == name || strings.EqualFold(c.Name(), name) {
			return c
		}
		for _, alias := range c.Aliases {
			if alias == name {
				return c
			}
		}
	}
	return nil
}
