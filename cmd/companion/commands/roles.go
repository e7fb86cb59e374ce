// ABOUTME: CLI commands for companion roles
// ABOUTME: Lists published roles and creates new ones from a JSON file
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/companion/internal/roles"
)

// NewRolesCmd creates the roles command
func NewRolesCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List companion roles",
		Long: `List companion roles. Built-in roles are seeded on first use.

Examples:
  companion roles
  companion roles --status draft
  companion roles create --file role.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				list, err := a.roles.List(ctx, true, status)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), list)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "NAME\tSLUG\tTAGS\tFAVORITES\tID\n")
				fmt.Fprintf(w, "----\t----\t----\t---------\t--\n")
				for _, r := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
						truncate(r.Name, 20),
						r.Slug,
						truncate(strings.Join(r.Tags, ","), 30),
						r.Metrics.Favorites,
						r.ID)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "published", "Only roles with this visibility status (empty for all)")
	cmd.AddCommand(newRoleCreateCmd())
	return cmd
}

func newRoleCreateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a role from a JSON file (- for stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readRoleInput(cmd, file)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				role, err := a.roles.Create(ctx, input)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), role)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created role %s (%s)\n", role.ID, role.Slug)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the role JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readRoleInput(cmd *cobra.Command, path string) (roles.RoleInput, error) {
	var input roles.RoleInput

	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return input, fmt.Errorf("opening role file: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return input, fmt.Errorf("decoding role JSON: %w", err)
	}
	return input, nil
}
