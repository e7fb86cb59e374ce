// ABOUTME: CLI commands for listing, reading, chatting in and removing conversations
// ABOUTME: Each command opens the app, calls one conversation operation and renders the result
package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/companion/internal/core"
	"github.com/harper/companion/internal/models"
)

var (
	sendTier      string
	suggestTier   string
	suggestCount  int
	messagesLimit int
	forceDelete   bool
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversations",
		Long: `List the most recently updated conversations.

Examples:
  companion list
  companion list --format json`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		conversations, err := a.conversations.List(ctx, a.cfg.UserID)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), conversations)
		}
		if len(conversations) == 0 {
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "No conversations yet\n")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "COMPANION\tTIER\tFAV\tLAST MESSAGE\tUPDATED\tID\n")
		fmt.Fprintf(w, "---------\t----\t---\t------------\t-------\t--\n")
		for _, c := range conversations {
			fav := ""
			if c.IsFavorite {
				fav = "★"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(c.AIName, 20),
				c.MembershipTier,
				fav,
				truncate(c.LastMessage, 40),
				formatMillis(c.UpdatedAt),
				c.ConversationID)
		}
		_ = w.Flush()

		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d conversation(s)\n", len(conversations))
		}
		return nil
	})
}

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show a conversation, creating it from its role if needed",
		Long: `Show a conversation's companion metadata.

The conversation id is the companion's role id or slug. Opening a
conversation for the first time creates it from the role.

Examples:
  companion show luna-dj
  companion show LunA7Dj4X3 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}
	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		res, err := a.conversations.Ensure(ctx, a.cfg.UserID, args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), res.Conversation)
		}
		printConversation(cmd, res.Conversation)
		if res.Created && !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "\n(new conversation)\n")
		}
		return nil
	})
}

func printConversation(cmd *cobra.Command, c *models.Conversation) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", c.AIName, c.ConversationID)
	if c.Summary != "" {
		fmt.Fprintf(out, "  %s\n", c.Summary)
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(out, "  Tags:     %s\n", strings.Join(c.Tags, ", "))
	}
	fmt.Fprintf(out, "  Intimacy: %s\n", c.IntimacyLabel)
	fmt.Fprintf(out, "  Tier:     %s\n", c.MembershipTier)
	if c.LastModel != nil {
		fmt.Fprintf(out, "  Model:    %s\n", *c.LastModel)
	}
	fmt.Fprintf(out, "  Favorite: %t\n", c.IsFavorite)
	fmt.Fprintf(out, "  Updated:  %s\n", formatMillis(c.UpdatedAt))
}

// NewSendCmd creates the send command
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <conversation-id> <message...>",
		Short: "Send a message and print the companion's reply",
		Long: `Send a message to a companion and print its reply.

The reply model is chosen from the membership tier: --tier wins, then
the tier stored on the conversation, then visitor.

Examples:
  companion send luna-dj "今晚放什麼歌？"
  companion send luna-dj hello there --tier vip`,
		Args: cobra.MinimumNArgs(2),
		RunE: runSend,
	}
	cmd.Flags().StringVar(&sendTier, "tier", "", "Membership tier override (visitor, basic, basic_plus, vip, vip_plus)")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		req := core.SendRequest{
			UserID:         a.cfg.UserID,
			ConversationID: args[0],
			Message:        strings.Join(args[1:], " "),
		}
		if sendTier != "" {
			req.ExplicitTier = sendTier
		}

		res, err := a.conversations.SendMessage(ctx, req)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), res)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Conversation.AIName, res.AIMessage.Message)
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "\n[tier %s via %s, model %s]\n",
				res.Selection.Tier, res.Selection.Source, res.Selection.Model)
		}
		return nil
	})
}

// NewSuggestCmd creates the suggest command
func NewSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <conversation-id>",
		Short: "Suggest replies you could send next",
		Long: `Suggest short replies for the user's next turn.

Always prints exactly --count suggestions; when the model's answer is
unusable, persona-flavoured fallbacks fill the gaps.

Examples:
  companion suggest luna-dj
  companion suggest luna-dj --count 5`,
		Args: cobra.ExactArgs(1),
		RunE: runSuggest,
	}
	cmd.Flags().IntVarP(&suggestCount, "count", "n", core.DefaultSuggestionCount, "Number of suggestions")
	cmd.Flags().StringVar(&suggestTier, "tier", "", "Membership tier override")
	return cmd
}

func runSuggest(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(suggestCount, "count"); err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		req := core.SuggestRequest{
			UserID:         a.cfg.UserID,
			ConversationID: args[0],
			Limit:          suggestCount,
		}
		if suggestTier != "" {
			req.ExplicitTier = suggestTier
		}

		suggestions, err := a.conversations.GenerateSuggestions(ctx, req)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), suggestions)
		}
		for i, s := range suggestions {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, s)
		}
		return nil
	})
}

// NewMessagesCmd creates the messages command
func NewMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Show the most recent messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runMessages,
	}
	cmd.Flags().IntVarP(&messagesLimit, "limit", "n", core.DefaultMessagesLimit, "Maximum number of messages")
	return cmd
}

func runMessages(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(messagesLimit, "limit"); err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		messages, err := a.conversations.Messages(ctx, a.cfg.UserID, args[0], messagesLimit)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), messages)
		}
		if len(messages) == 0 {
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "No messages\n")
			}
			return nil
		}
		for _, m := range messages {
			created := m.CreatedAt
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", formatMillis(&created), m.Sender, m.Message)
		}
		return nil
	})
}

// NewClearCmd creates the clear command
func NewClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <conversation-id>",
		Short: "Delete every message but keep the conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runClear,
	}
	return cmd
}

func runClear(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.conversations.ClearMessages(ctx, a.cfg.UserID, args[0]); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared messages in %s\n", args[0])
		}
		return nil
	})
}

// NewDeleteCmd creates the delete command
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation and all of its messages",
		Long: `Delete a conversation and all of its messages.

Requires --force. Deleting a conversation that does not exist is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: runDelete,
	}
	cmd.Flags().BoolVarP(&forceDelete, "force", "f", false, "Confirm deletion")
	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	if !forceDelete {
		return fmt.Errorf("refusing to delete %s without --force", args[0])
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.conversations.Delete(ctx, a.cfg.UserID, args[0]); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		}
		return nil
	})
}
