// ABOUTME: CLI commands for the favorites ledger
// ABOUTME: favorite/unfavorite toggle a role; favorites lists the ledger newest first
package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/companion/internal/core"
	"github.com/harper/companion/internal/models"
)

// NewFavoriteCmd creates the favorite command
func NewFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <role-id>",
		Short: "Favorite a companion role",
		Long: `Favorite a companion role by id or slug.

Favoriting creates the conversation if it does not exist yet and
unarchives it otherwise. Favoriting twice is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.favorites.Add(ctx, a.cfg.UserID, args[0])
				if err != nil {
					return err
				}
				return printFavoriteResult(cmd, res, true)
			})
		},
	}
}

// NewUnfavoriteCmd creates the unfavorite command
func NewUnfavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfavorite <role-id>",
		Short: "Remove a companion role from favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.favorites.Remove(ctx, a.cfg.UserID, args[0])
				if err != nil {
					return err
				}
				return printFavoriteResult(cmd, res, false)
			})
		},
	}
}

func printFavoriteResult(cmd *cobra.Command, res *core.FavoriteResult, favorite bool) error {
	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), res)
	}
	if quiet {
		return nil
	}
	switch {
	case !res.Changed && favorite:
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already a favorite\n", res.RoleID)
	case !res.Changed:
		fmt.Fprintf(cmd.OutOrStdout(), "%s was not a favorite\n", res.RoleID)
	case favorite:
		fmt.Fprintf(cmd.OutOrStdout(), "Favorited %s\n", res.RoleID)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "Unfavorited %s\n", res.RoleID)
	}
	return nil
}

// NewFavoritesCmd creates the favorites command
func NewFavoritesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List favorited roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				favs, err := a.favorites.List(ctx, a.cfg.UserID)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), favs)
				}
				if len(favs) == 0 {
					if !quiet {
						fmt.Fprintf(cmd.OutOrStdout(), "No favorites yet\n")
					}
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "ROLE ID\tFAVORITED\n")
				fmt.Fprintf(w, "-------\t---------\n")
				for _, f := range favs {
					fmt.Fprintf(w, "%s\t%s\n", f.RoleID, favoritedAt(f))
				}
				return w.Flush()
			})
		},
	}
}

func favoritedAt(f models.Favorite) string {
	ts := f.CreatedAt
	return formatMillis(&ts)
}
