package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/honganh1206/stargazer/preview"
	"github.com/honganh1206/stargazer/utils"
)

func PreviewsHandler(cmd *cobra.Command, args []string, e *env) error {
	previews, err := e.client.ListPreviews(cmd.Context())
	if err != nil {
		return err
	}

	if len(previews) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No chats yet. Join a group to start one.")
		return nil
	}

	headers := []string{"Group", "Title", "Members", "Unread", "Latest"}
	var rows [][]string
	for _, p := range previews {
		rows = append(rows, []string{
			p.TeamID,
			utils.Truncate(p.Title, 32),
			strconv.Itoa(p.MemberCount),
			strconv.Itoa(p.UnreadCount),
			utils.Truncate(p.RecentMessage, 40),
		})
	}
	utils.RenderTableTo(cmd.OutOrStdout(), headers, rows)
	fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", preview.TotalUnread(previews))
	return nil
}

func ChatHistoryHandler(cmd *cobra.Command, args []string, e *env) error {
	before, _ := cmd.Flags().GetInt64("before")
	size, _ := cmd.Flags().GetInt("size")

	page, err := e.client.ChatHistory(cmd.Context(), args[0], before, size)
	if err != nil {
		return err
	}

	if len(page.Messages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages.")
		return nil
	}

	// Pages come newest first; print oldest at the top like a chat window
	for i := len(page.Messages) - 1; i >= 0; i-- {
		m := page.Messages[i]
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", m.CreatedAt.Local().Format("01-02 15:04"), m.SenderID, m.Content)
	}
	if page.HasNext {
		fmt.Fprintf(cmd.OutOrStdout(), "-- older messages: --before %d\n", page.NextCursor)
	}
	return nil
}

func ChatSendHandler(cmd *cobra.Command, args []string, e *env) error {
	content := strings.TrimSpace(strings.Join(args[1:], " "))
	if content == "" {
		return errors.New("message is empty")
	}

	msg, err := e.client.SendMessage(cmd.Context(), args[0], content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent message %d\n", msg.ID)
	return nil
}

func ChatReadHandler(cmd *cobra.Command, args []string, e *env) error {
	if err := e.client.MarkRead(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as read\n", args[0])
	return nil
}

func newChatCmds() []*cobra.Command {
	previewsCmd := &cobra.Command{
		Use:   "previews",
		Short: "List your chats with unread counts",
		Args:  cobra.NoArgs,
		RunE:  withEnv(PreviewsHandler),
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Read and write group chats",
	}

	historyCmd := &cobra.Command{
		Use:   "history GROUP_ID",
		Short: "Show chat messages, newest page first",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(ChatHistoryHandler),
	}
	historyCmd.Flags().Int64("before", 0, "Cursor from a previous page")
	historyCmd.Flags().Int("size", 30, "Messages per page")

	sendCmd := &cobra.Command{
		Use:   "send GROUP_ID MESSAGE...",
		Short: "Send a chat message",
		Args:  cobra.MinimumNArgs(2),
		RunE:  withEnv(ChatSendHandler),
	}

	readCmd := &cobra.Command{
		Use:   "read GROUP_ID",
		Short: "Mark a chat as read",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(ChatReadHandler),
	}

	chatCmd.AddCommand(historyCmd, sendCmd, readCmd)

	return []*cobra.Command{previewsCmd, chatCmd}
}
