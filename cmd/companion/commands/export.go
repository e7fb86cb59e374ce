// ABOUTME: Export command writes a user's conversations to a file or stdout
// ABOUTME: Supports YAML and Markdown export formats
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harper/companion/internal/core"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export conversations to YAML or Markdown",
		Long: `Export every conversation, message and favorite of the current user.

Formats:
  yaml      Structured dump (default)
  markdown  Readable transcript

Examples:
  companion export
  companion export -o backup.yaml
  companion export -f markdown -o chats.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var write func(io.Writer, *core.ExportData) error
			switch format {
			case "yaml", "yml":
				write = core.WriteYAML
			case "markdown", "md":
				write = core.WriteMarkdown
			default:
				return fmt.Errorf("unsupported export format %q (use yaml or markdown)", format)
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				data, err := core.NewExporter(a.store).Export(ctx, a.cfg.UserID)
				if err != nil {
					return err
				}

				if output == "" {
					return write(cmd.OutOrStdout(), data)
				}

				if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				file, err := os.Create(output) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = file.Close() }()

				if err := write(file, data); err != nil {
					return err
				}
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d conversation(s) to %s\n", len(data.Conversations), output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Export format: yaml or markdown")
	return cmd
}
