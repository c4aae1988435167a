package data

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

//go:embed schema.sql
var Schema string

var (
	ErrTeamNotFound = errors.New("team not found")
	ErrTeamFull     = errors.New("team is full")
	ErrForbidden    = errors.New("not the team owner")
	ErrNotMember    = errors.New("not a team member")
	ErrInvalidInput = errors.New("invalid input")
)

// Team is a stargazing meetup group. Each team has exactly one chat.
type Team struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	MeetAt      *time.Time `json:"meetAt,omitempty"`
	Capacity    int        `json:"capacity"`
	MemberCount int        `json:"memberCount"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	OwnerID     string     `json:"ownerId"`
	Bookmarked  bool       `json:"bookmarked"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TeamInput carries the user-editable fields of a team.
type TeamInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	MeetAt      *time.Time `json:"meetAt,omitempty"`
	Capacity    int        `json:"capacity"`
	ImageURL    string     `json:"imageUrl,omitempty"`
}

func (in TeamInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
	}
	return nil
}

type TeamPage struct {
	Teams []Team `json:"teams"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Total int    `json:"total"`
}

type TeamModel struct {
	DB *sql.DB
}

const teamColumns = `
	t.id, t.title, t.description, t.location, t.meet_at, t.capacity, t.image_url, t.owner_id, t.created_at,
	(SELECT COUNT(*) FROM team_members m WHERE m.team_id = t.id) AS member_count,
	EXISTS(SELECT 1 FROM bookmarks b WHERE b.team_id = t.id AND b.user_id = ?) AS bookmarked
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (*Team, error) {
	var t Team
	var meetAt sql.NullTime
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Location, &meetAt, &t.Capacity,
		&t.ImageURL, &t.OwnerID, &t.CreatedAt, &t.MemberCount, &t.Bookmarked); err != nil {
		return nil, err
	}
	if meetAt.Valid {
		at := meetAt.Time
		t.MeetAt = &at
	}
	return &t, nil
}

// Create stores a new team owned by ownerID. The owner joins its chat immediately.
func (tm *TeamModel) Create(ownerID string, in TeamInput) (*Team, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	tx, err := tm.DB.Begin()
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO teams (id, title, description, location, meet_at, capacity, image_url, owner_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	if _, err = tx.Exec(query, id.String(), in.Title, in.Description, in.Location, nullTime(in.MeetAt),
		in.Capacity, in.ImageURL, ownerID, now); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to insert team: %w", err)
	}

	query = `
	INSERT INTO team_members (team_id, user_id, last_read_id, joined_at) VALUES (?, ?, 0, ?);
	`
	if _, err = tx.Exec(query, id.String(), ownerID, now); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to add owner to team: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return tm.Get(id.String(), ownerID)
}

// Get loads a team as seen by viewerID.
func (tm *TeamModel) Get(id, viewerID string) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.id = ?`

	t, err := scanTeam(tm.DB.QueryRow(query, viewerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to query team '%s': %w", id, err)
	}
	return t, nil
}

// List pages through teams ordered by creation time, newest first. An empty
// keyword matches everything; otherwise title, description and location are searched.
func (tm *TeamModel) List(viewerID, keyword string, page, size int) (*TeamPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	where := ""
	args := []any{}
	if kw := strings.TrimSpace(keyword); kw != "" {
		where = `WHERE t.title LIKE ? OR t.description LIKE ? OR t.location LIKE ?`
		like := "%" + kw + "%"
		args = append(args, like, like, like)
	}

	var total int
	if err := tm.DB.QueryRow(`SELECT COUNT(*) FROM teams t `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count teams: %w", err)
	}

	query := `SELECT ` + teamColumns + ` FROM teams t ` + where + `
		ORDER BY t.created_at DESC, t.id
		LIMIT ? OFFSET ?`
	queryArgs := append([]any{viewerID}, args...)
	queryArgs = append(queryArgs, size, page*size)

	teams, err := tm.queryTeams(query, queryArgs...)
	if err != nil {
		return nil, err
	}

	return &TeamPage{Teams: teams, Page: page, Size: size, Total: total}, nil
}

func (tm *TeamModel) queryTeams(query string, args ...any) ([]Team, error) {
	rows, err := tm.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	teams := make([]Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return teams, nil
}

// Update overwrites the editable fields. Only the owner may do this.
func (tm *TeamModel) Update(id, userID string, in TeamInput) (*Team, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := tm.requireOwner(id, userID); err != nil {
		return nil, err
	}

	query := `
	UPDATE teams SET title = ?, description = ?, location = ?, meet_at = ?, capacity = ?, image_url = ?
	WHERE id = ?;
	`
	if _, err := tm.DB.Exec(query, in.Title, in.Description, in.Location, nullTime(in.MeetAt),
		in.Capacity, in.ImageURL, id); err != nil {
		return nil, fmt.Errorf("failed to update team '%s': %w", id, err)
	}

	return tm.Get(id, userID)
}

// Delete removes the team with its chat, members and bookmarks.
func (tm *TeamModel) Delete(id, userID string) error {
	if err := tm.requireOwner(id, userID); err != nil {
		return err
	}

	tx, err := tm.DB.Begin()
	if err != nil {
		return err
	}

	for _, query := range []string{
		`DELETE FROM messages WHERE team_id = ?`,
		`DELETE FROM bookmarks WHERE team_id = ?`,
		`DELETE FROM team_members WHERE team_id = ?`,
		`DELETE FROM teams WHERE id = ?`,
	} {
		if _, err = tx.Exec(query, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete team '%s': %w", id, err)
		}
	}

	return tx.Commit()
}

// Join adds userID to the team. Joining twice is a no-op.
func (tm *TeamModel) Join(id, userID string) (*Team, error) {
	t, err := tm.Get(id, userID)
	if err != nil {
		return nil, err
	}

	member, err := tm.IsMember(id, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return t, nil
	}

	if t.Capacity > 0 && t.MemberCount >= t.Capacity {
		return nil, ErrTeamFull
	}

	// New members start with the whole history read
	query := `
	INSERT INTO team_members (team_id, user_id, last_read_id, joined_at)
	VALUES (?, ?, COALESCE((SELECT MAX(id) FROM messages WHERE team_id = ?), 0), ?);
	`
	if _, err := tm.DB.Exec(query, id, userID, id, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to join team '%s': %w", id, err)
	}

	return tm.Get(id, userID)
}

func (tm *TeamModel) Leave(id, userID string) error {
	if _, err := tm.Get(id, userID); err != nil {
		return err
	}

	res, err := tm.DB.Exec(`DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to leave team '%s': %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotMember
	}
	return nil
}

func (tm *TeamModel) IsMember(id, userID string) (bool, error) {
	var exists bool
	err := tm.DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = ? AND user_id = ?)`, id, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// Members lists the user ids in a team.
func (tm *TeamModel) Members(id string) ([]string, error) {
	rows, err := tm.DB.Query(`SELECT user_id FROM team_members WHERE team_id = ? ORDER BY joined_at, user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of '%s': %w", id, err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

func (tm *TeamModel) requireOwner(id, userID string) error {
	var ownerID string
	err := tm.DB.QueryRow(`SELECT owner_id FROM teams WHERE id = ?`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to query team owner: %w", err)
	}
	if ownerID != userID {
		return ErrForbidden
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
