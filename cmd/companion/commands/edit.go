// ABOUTME: CLI commands that edit conversation metadata directly
// ABOUTME: set upserts persona fields and intimacy; image sets or clears the display image
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/companion/internal/core"
)

// NewSetCmd creates the set command
func NewSetCmd() *cobra.Command {
	var (
		name     string
		persona  string
		summary  string
		tags     []string
		samples  []string
		intimacy int
		label    string
		favorite bool
	)

	cmd := &cobra.Command{
		Use:   "set <conversation-id>",
		Short: "Create or update a conversation's companion metadata",
		Long: `Create or update a conversation's companion metadata.

Only the flags you pass are changed. A non-positive intimacy level falls back to 1.

Examples:
  companion set luna-dj --name "Luna" --tags music,night
  companion set luna-dj --intimacy 4
  companion set luna-dj --favorite=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := core.ConversationInput{ConversationID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.AIName = &name
			}
			if flags.Changed("persona") {
				in.AIPersona = &persona
			}
			if flags.Changed("summary") {
				in.Summary = &summary
			}
			if flags.Changed("tags") {
				in.Tags = tags
			}
			if flags.Changed("sample") {
				in.SampleMessages = samples
			}
			if flags.Changed("intimacy") {
				in.IntimacyLevel = intimacy
			}
			if flags.Changed("intimacy-label") {
				in.IntimacyLabel = &label
			}
			if flags.Changed("favorite") {
				in.IsFavorite = &favorite
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.conversations.Upsert(ctx, a.cfg.UserID, in)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), res.Conversation)
				}
				printConversation(cmd, res.Conversation)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Companion display name")
	cmd.Flags().StringVar(&persona, "persona", "", "Persona description")
	cmd.Flags().StringVar(&summary, "summary", "", "Short summary")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Comma-separated tags")
	cmd.Flags().StringArrayVar(&samples, "sample", nil, "Sample message (repeatable)")
	cmd.Flags().IntVar(&intimacy, "intimacy", 1, "Intimacy level")
	cmd.Flags().StringVar(&label, "intimacy-label", "", "Intimacy label")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "Mark as favorite")

	return cmd
}

// NewImageCmd creates the image command
func NewImageCmd() *cobra.Command {
	var (
		image       string
		storagePath string
		clearImage  bool
	)

	cmd := &cobra.Command{
		Use:   "image <conversation-id>",
		Short: "Set or clear a conversation's display image",
		Long: `Set or clear a conversation's display image.

Examples:
  companion image luna-dj --url https://example.com/luna.jpg
  companion image luna-dj --clear`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update core.ImageUpdate
			empty := ""
			switch {
			case clearImage:
				update.Image, update.ImageStoragePath = &empty, &empty
			default:
				if cmd.Flags().Changed("url") {
					update.Image = &image
				}
				if cmd.Flags().Changed("storage-path") {
					update.ImageStoragePath = &storagePath
				}
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				conv, err := a.conversations.UpdateImage(ctx, a.cfg.UserID, args[0], update)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), conv)
				}
				if !quiet {
					if conv.Image == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "Cleared image for %s\n", conv.ConversationID)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Image for %s: %s\n", conv.ConversationID, *conv.Image)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&image, "url", "", "Image URL")
	cmd.Flags().StringVar(&storagePath, "storage-path", "", "Storage path of an uploaded image")
	cmd.Flags().BoolVar(&clearImage, "clear", false, "Clear both image fields")
	cmd.MarkFlagsMutuallyExclusive("clear", "url")
	cmd.MarkFlagsMutuallyExclusive("clear", "storage-path")

	return cmd
}
