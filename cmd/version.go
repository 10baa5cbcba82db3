package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pri/internal/version"
)

type versionOptions struct {
	Format   string
	Short    bool
	Detailed bool
}

func newVersionCommand() *cobra.Command {
	var opts versionOptions

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version information for pri including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version and target platform

Examples:
  pri version                 # Show version
  pri version --detailed      # Show detailed version info
  pri version --format json   # Output as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&opts.Short, "short", false, "Show short version only")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "Show detailed version information")

	return cmd
}

func runVersion(w io.Writer, opts versionOptions) error {
	switch opts.Format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(version.GetBuildInfo())
	case "text":
		switch {
		case opts.Short:
			_, err := fmt.Fprintln(w, version.GetShortVersion())
			return err
		case opts.Detailed:
			_, err := fmt.Fprintln(w, version.GetDetailedVersion())
			return err
		default:
			_, err := fmt.Fprintf(w, "pri %s\n", version.GetShortVersion())
			return err
		}
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", opts.Format)
	}
}
