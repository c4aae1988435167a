package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/honganh1206/stargazer/server/data"
	"github.com/honganh1206/stargazer/utils"
)

func renderTeams(cmd *cobra.Command, teams []data.Team) {
	if len(teams) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No groups found.")
		return
	}

	headers := []string{"ID", "Title", "Location", "Meet At", "Members", "Bookmarked"}
	var rows [][]string
	for _, t := range teams {
		rows = append(rows, []string{
			t.ID,
			utils.Truncate(t.Title, 32),
			utils.Truncate(t.Location, 24),
			formatMeetAt(t.MeetAt),
			formatMembers(t),
			strconv.FormatBool(t.Bookmarked),
		})
	}
	utils.RenderTableTo(cmd.OutOrStdout(), headers, rows)
}

func formatMeetAt(at *time.Time) string {
	if at == nil {
		return "-"
	}
	return at.Local().Format("2006-01-02 15:04")
}

func formatMembers(t data.Team) string {
	if t.Capacity > 0 {
		return fmt.Sprintf("%d/%d", t.MemberCount, t.Capacity)
	}
	return strconv.Itoa(t.MemberCount)
}

func GroupsHandler(cmd *cobra.Command, args []string, e *env) error {
	keyword, _ := cmd.Flags().GetString("search")
	page, _ := cmd.Flags().GetInt("page")
	size, _ := cmd.Flags().GetInt("size")

	result, err := e.client.SearchGroups(cmd.Context(), keyword, page, size)
	if err != nil {
		return err
	}

	renderTeams(cmd, result.Teams)
	fmt.Fprintf(cmd.OutOrStdout(), "Page %d, %d of %d groups\n", result.Page, len(result.Teams), result.Total)
	return nil
}

func GroupShowHandler(cmd *cobra.Command, args []string, e *env) error {
	team, err := e.client.GetGroup(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	lines := []string{
		"ID:         " + team.ID,
		"Location:   " + team.Location,
		"Meet at:    " + formatMeetAt(team.MeetAt),
		"Members:    " + formatMembers(*team),
		"Owner:      " + team.OwnerID,
		"Bookmarked: " + strconv.FormatBool(team.Bookmarked),
	}
	if team.ImageURL != "" {
		lines = append(lines, "Image:      "+team.ImageURL)
	}
	if team.Description != "" {
		lines = append(lines, "", team.Description)
	}

	fmt.Fprint(cmd.OutOrStdout(), utils.RenderBox(team.Title, lines))
	return nil
}

// teamInputFromFlags builds the editable fields. For updates, base supplies
// the values of flags the user did not set.
func teamInputFromFlags(cmd *cobra.Command, base data.TeamInput) (data.TeamInput, error) {
	in := base
	flags := cmd.Flags()

	if flags.Changed("title") {
		in.Title, _ = flags.GetString("title")
	}
	if flags.Changed("description") {
		in.Description, _ = flags.GetString("description")
	}
	if flags.Changed("location") {
		in.Location, _ = flags.GetString("location")
	}
	if flags.Changed("capacity") {
		in.Capacity, _ = flags.GetInt("capacity")
	}
	if flags.Changed("image") {
		in.ImageURL, _ = flags.GetString("image")
	}
	if flags.Changed("meet-at") {
		raw, _ := flags.GetString("meet-at")
		if raw == "" {
			in.MeetAt = nil
		} else {
			at, err := utils.ParseTimeWithFallback(raw, time.Local)
			if err != nil {
				return in, err
			}
			in.MeetAt = &at
		}
	}
	return in, nil
}

func addTeamFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Group title")
	cmd.Flags().String("description", "", "What the meetup is about")
	cmd.Flags().String("location", "", "Where to meet")
	cmd.Flags().String("meet-at", "", "When to meet, e.g. \"2026-08-12 21:00\"")
	cmd.Flags().Int("capacity", 0, "Maximum members, 0 for unlimited")
	cmd.Flags().String("image", "", "Image URL, see the upload command")
}

func GroupCreateHandler(cmd *cobra.Command, args []string, e *env) error {
	in, err := teamInputFromFlags(cmd, data.TeamInput{})
	if err != nil {
		return err
	}

	team, err := e.client.CreateGroup(cmd.Context(), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created group %s (%s)\n", team.Title, team.ID)
	return nil
}

func GroupUpdateHandler(cmd *cobra.Command, args []string, e *env) error {
	current, err := e.client.GetGroup(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	in, err := teamInputFromFlags(cmd, data.TeamInput{
		Title:       current.Title,
		Description: current.Description,
		Location:    current.Location,
		MeetAt:      current.MeetAt,
		Capacity:    current.Capacity,
		ImageURL:    current.ImageURL,
	})
	if err != nil {
		return err
	}

	team, err := e.client.UpdateGroup(cmd.Context(), args[0], in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated group %s\n", team.Title)
	return nil
}

func GroupDeleteHandler(cmd *cobra.Command, args []string, e *env) error {
	if err := e.client.DeleteGroup(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %s\n", args[0])
	return nil
}

func GroupJoinHandler(cmd *cobra.Command, args []string, e *env) error {
	team, err := e.client.JoinGroup(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Joined %s (%s members)\n", team.Title, formatMembers(*team))
	return nil
}

func GroupLeaveHandler(cmd *cobra.Command, args []string, e *env) error {
	if err := e.client.LeaveGroup(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Left group %s\n", args[0])
	return nil
}

func BookmarksHandler(cmd *cobra.Command, args []string, e *env) error {
	teams, err := e.client.ListBookmarks(cmd.Context())
	if err != nil {
		return err
	}
	renderTeams(cmd, teams)
	return nil
}

func BookmarkAddHandler(cmd *cobra.Command, args []string, e *env) error {
	if err := e.client.AddBookmark(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bookmarked %s\n", args[0])
	return nil
}

func BookmarkRemoveHandler(cmd *cobra.Command, args []string, e *env) error {
	if err := e.client.RemoveBookmark(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed bookmark %s\n", args[0])
	return nil
}

func newGroupCmds() []*cobra.Command {
	groupsCmd := &cobra.Command{
		Use:   "groups",
		Short: "List or search groups",
		Args:  cobra.NoArgs,
		RunE:  withEnv(GroupsHandler),
	}
	groupsCmd.Flags().StringP("search", "s", "", "Keyword to search titles, descriptions and locations")
	groupsCmd.Flags().Int("page", 0, "Page number, starting at 0")
	groupsCmd.Flags().Int("size", 20, "Page size")

	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Manage a single group",
	}

	showCmd := &cobra.Command{
		Use:   "show GROUP_ID",
		Short: "Show group details",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(GroupShowHandler),
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group; you join it as owner",
		Args:  cobra.NoArgs,
		RunE:  withEnv(GroupCreateHandler),
	}
	addTeamFlags(createCmd)
	createCmd.MarkFlagRequired("title")

	updateCmd := &cobra.Command{
		Use:   "update GROUP_ID",
		Short: "Edit a group you own",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(GroupUpdateHandler),
	}
	addTeamFlags(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete GROUP_ID",
		Short: "Delete a group you own",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(GroupDeleteHandler),
	}

	joinCmd := &cobra.Command{
		Use:   "join GROUP_ID",
		Short: "Join a group and its chat",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(GroupJoinHandler),
	}

	leaveCmd := &cobra.Command{
		Use:   "leave GROUP_ID",
		Short: "Leave a group",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(GroupLeaveHandler),
	}

	groupCmd.AddCommand(showCmd, createCmd, updateCmd, deleteCmd, joinCmd, leaveCmd)

	bookmarksCmd := &cobra.Command{
		Use:   "bookmarks",
		Short: "List bookmarked groups",
		Args:  cobra.NoArgs,
		RunE:  withEnv(BookmarksHandler),
	}

	bookmarkCmd := &cobra.Command{
		Use:   "bookmark",
		Short: "Add or remove a bookmark",
	}
	bookmarkCmd.AddCommand(
		&cobra.Command{
			Use:   "add GROUP_ID",
			Short: "Bookmark a group",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(BookmarkAddHandler),
		},
		&cobra.Command{
			Use:   "remove GROUP_ID",
			Short: "Remove a bookmark",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(BookmarkRemoveHandler),
		},
	)

	return []*cobra.Command{groupsCmd, groupCmd, bookmarksCmd, bookmarkCmd}
}
