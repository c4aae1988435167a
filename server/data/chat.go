package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/honganh1206/stargazer/preview"
)

type Message struct {
	ID        int64     `json:"id"`
	TeamID    string    `json:"teamId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessagePage is one page of chat history, newest first. Pass NextCursor as
// the before argument to fetch the following page.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	HasNext    bool      `json:"hasNext"`
	NextCursor int64     `json:"nextCursor,omitempty"`
}

type ChatModel struct {
	DB *sql.DB
}

// Append stores a message from senderID. The sender has read everything up to it.
func (cm *ChatModel) Append(teamID, senderID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if err := cm.requireMember(teamID, senderID); err != nil {
		return nil, err
	}

	msg := &Message{
		TeamID:    teamID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := cm.DB.Begin()
	if err != nil {
		return nil, err
	}

	res, err := tx.Exec(`INSERT INTO messages (team_id, sender_id, content, created_at) VALUES (?, ?, ?, ?)`,
		teamID, senderID, content, msg.CreatedAt)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err = tx.Exec(`UPDATE team_members SET last_read_id = ? WHERE team_id = ? AND user_id = ?`,
		msg.ID, teamID, senderID); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to advance read marker: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns up to size messages older than before (0 means newest).
func (cm *ChatModel) History(teamID, userID string, before int64, size int) (*MessagePage, error) {
	if err := cm.requireMember(teamID, userID); err != nil {
		return nil, err
	}
	if size <= 0 || size > 100 {
		size = 30
	}

	query := `
		SELECT id, team_id, sender_id, content, created_at
		FROM messages
		WHERE team_id = ? AND (? = 0 OR id < ?)
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := cm.DB.Query(query, teamID, before, before, size+1)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for team '%s': %w", teamID, err)
	}
	defer rows.Close()

	page := &MessagePage{Messages: make([]Message, 0, size)}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TeamID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		page.Messages = append(page.Messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if len(page.Messages) > size {
		page.Messages = page.Messages[:size]
		page.HasNext = true
		page.NextCursor = page.Messages[size-1].ID
	}
	return page, nil
}

// MarkRead moves userID's read marker to the latest message.
func (cm *ChatModel) MarkRead(teamID, userID string) error {
	if err := cm.requireMember(teamID, userID); err != nil {
		return err
	}

	query := `
	UPDATE team_members
	SET last_read_id = COALESCE((SELECT MAX(id) FROM messages WHERE team_id = ?), 0)
	WHERE team_id = ? AND user_id = ?;
	`
	if _, err := cm.DB.Exec(query, teamID, teamID, userID); err != nil {
		return fmt.Errorf("failed to mark team '%s' read: %w", teamID, err)
	}
	return nil
}

const previewQuery = `
	SELECT
		t.id,
		t.title,
		t.image_url,
		(SELECT COUNT(*) FROM team_members m2 WHERE m2.team_id = t.id) AS member_count,
		(SELECT COUNT(*) FROM messages msg
			WHERE msg.team_id = t.id AND msg.id > m.last_read_id AND msg.sender_id != m.user_id) AS unread,
		COALESCE((SELECT content FROM messages msg WHERE msg.team_id = t.id ORDER BY msg.id DESC LIMIT 1), '') AS recent,
		COALESCE((SELECT MAX(id) FROM messages msg WHERE msg.team_id = t.id), 0) AS latest_id
	FROM team_members m
	JOIN teams t ON t.id = m.team_id
	WHERE m.user_id = ?
`

// Previews lists a preview for every team userID belongs to, most recently
// active first.
func (cm *ChatModel) Previews(userID string) ([]preview.Preview, error) {
	rows, err := cm.DB.Query(previewQuery+` ORDER BY latest_id DESC, t.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query previews: %w", err)
	}
	defer rows.Close()

	previews := make([]preview.Preview, 0)
	for rows.Next() {
		p, err := scanPreview(rows)
		if err != nil {
			return nil, err
		}
		previews = append(previews, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return previews, nil
}

// Preview computes the preview of one team for userID.
func (cm *ChatModel) Preview(teamID, userID string) (*preview.Preview, error) {
	p, err := scanPreview(cm.DB.QueryRow(previewQuery+` AND t.id = ?`, userID, teamID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	return p, nil
}

func scanPreview(row rowScanner) (*preview.Preview, error) {
	var p preview.Preview
	var latestID int64
	if err := row.Scan(&p.TeamID, &p.Title, &p.ThumbnailURL, &p.MemberCount, &p.UnreadCount, &p.RecentMessage, &latestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan preview: %w", err)
	}
	return &p, nil
}

func (cm *ChatModel) requireMember(teamID, userID string) error {
	tm := TeamModel{DB: cm.DB}
	member, err := tm.IsMember(teamID, userID)
	if err != nil {
		return err
	}
	if member {
		return nil
	}

	var exists bool
	if err := cm.DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM teams WHERE id = ?)`, teamID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check team: %w", err)
	}
	if !exists {
		return ErrTeamNotFound
	}
	return ErrNotMember
}
