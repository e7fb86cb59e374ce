// ABOUTME: Root command and global flags for the companion CLI
// ABOUTME: Registers every subcommand and enforces --verbose/--quiet exclusivity
package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
 ██████  ██████  ███    ███ ██████   █████  ███    ██ ██  ██████  ███    ██
██      ██    ██ ████  ████ ██   ██ ██   ██ ████   ██ ██ ██    ██ ████   ██
██      ██    ██ ██ ████ ██ ██████  ███████ ██ ██  ██ ██ ██    ██ ██ ██  ██
██      ██    ██ ██  ██  ██ ██      ██   ██ ██  ██ ██ ██ ██    ██ ██  ██ ██
 ██████  ██████  ██      ██ ██      ██   ██ ██   ████ ██  ██████  ██   ████
`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "companion",
		Short: "Chat with AI companion personas",
		Long: banner + `
Companion keeps per-user conversations with AI personas. Each
conversation is seeded from its role, replies are generated with the
model of the caller's membership tier, and the whole store lives in a
local SQLite file.

Run "companion mcp" to expose the same operations to LLM agents.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table or json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewVersionCmd(),
		NewMCPCmd(),
		NewRolesCmd(),
		NewListCmd(),
		NewShowCmd(),
		NewSendCmd(),
		NewSuggestCmd(),
		NewMessagesCmd(),
		NewClearCmd(),
		NewDeleteCmd(),
		NewFavoriteCmd(),
		NewUnfavoriteCmd(),
		NewFavoritesCmd(),
		NewSetCmd(),
		NewImageCmd(),
		NewExportCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
