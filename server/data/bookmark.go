package data

import (
	"database/sql"
	"fmt"
	"time"
)

type BookmarkModel struct {
	DB *sql.DB
}

// Add bookmarks a team for userID. Adding twice is a no-op.
func (bm *BookmarkModel) Add(userID, teamID string) error {
	var exists bool
	if err := bm.DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM teams WHERE id = ?)`, teamID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check team: %w", err)
	}
	if !exists {
		return ErrTeamNotFound
	}

	query := `
	INSERT OR IGNORE INTO bookmarks (user_id, team_id, created_at) VALUES (?, ?, ?);
	`
	if _, err := bm.DB.Exec(query, userID, teamID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}

// Remove drops a bookmark. Removing a missing bookmark is a no-op.
func (bm *BookmarkModel) Remove(userID, teamID string) error {
	if _, err := bm.DB.Exec(`DELETE FROM bookmarks WHERE user_id = ? AND team_id = ?`, userID, teamID); err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return nil
}

// List returns the bookmarked teams of userID, most recently bookmarked first.
func (bm *BookmarkModel) List(userID string) ([]Team, error) {
	query := `SELECT ` + teamColumns + `
		FROM bookmarks bk JOIN teams t ON t.id = bk.team_id
		WHERE bk.user_id = ?
		ORDER BY bk.created_at DESC, t.id`

	tm := TeamModel{DB: bm.DB}
	return tm.queryTeams(query, userID, userID)
}
